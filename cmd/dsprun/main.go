// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dsprun drives a remote DSP session from the command line:
// compile a DSP against a server, list the factories the server holds,
// or open an instance against a compiled factory and hold the session
// open until interrupted. It does not read or write audio files. It
// exists mainly as a thin, scriptable exerciser of the remotedsp package.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-faust/firremote/remotedsp"
	"github.com/go-faust/firremote/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dsprun",
		Short: "Compile and run a DSP against a remote FIR compilation server",
	}
	root.AddCommand(newCreateCmd(), newListCmd(), newRunCmd())
	return root
}

var (
	serverIP   string
	serverPort int
)

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverIP, "server", "127.0.0.1", "compilation server host")
	cmd.Flags().IntVar(&serverPort, "port", 7777, "compilation server control port")
}

func newCreateCmd() *cobra.Command {
	var name, dspFile string
	var optLevel int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Compile a DSP source file against the server and print its content hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(dspFile)
			if err != nil {
				return err
			}

			client, reg := newSession()
			f, err := remotedsp.CreateFactory(cmd.Context(), client, reg, serverIP, serverPort, name, string(content), remotedsp.CompileOptions{OptLevel: optLevel})
			if err != nil {
				return err
			}

			fmt.Printf("factory %s: %d in / %d out\n", f.Hash, f.Descriptor.NumInputs, f.Descriptor.NumOutputs)
			return nil
		},
	}
	addServerFlags(cmd)
	cmd.Flags().StringVar(&name, "name", "dsp", "name to register the DSP under")
	cmd.Flags().StringVar(&dspFile, "file", "", "path to the DSP source file")
	cmd.Flags().IntVar(&optLevel, "opt", 0, "compiler optimization level")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the content hashes the server currently has compiled",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _ := newSession()
			hashes, err := remotedsp.AvailableFactories(cmd.Context(), client)
			if err != nil {
				return err
			}
			for _, h := range hashes {
				fmt.Println(h)
			}
			return nil
		},
	}
	addServerFlags(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	var hash string
	var sampleRate, bufferSize int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open an instance against an already-compiled factory and hold the session open",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, reg := newSession()
			f, err := remotedsp.GetFactoryFromHash(cmd.Context(), client, reg, serverIP, serverPort, hash)
			if err != nil {
				return err
			}

			inst, err := remotedsp.NewInstance(f, reg, sampleRate, bufferSize, func(msg string) int {
				fmt.Fprintf(os.Stderr, "dsprun: instance error: %s\n", msg)
				return 1
			})
			if err != nil {
				return err
			}

			if err := inst.Start(cmd.Context()); err != nil {
				return err
			}
			// deferred calls run last-in first-out: Stop, then Destroy.
			defer inst.Destroy(cmd.Context())
			defer inst.Stop(cmd.Context())

			fmt.Printf("instance %s running against factory %s, press Ctrl-C to stop\n", inst.Key(), f.Hash)
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
	addServerFlags(cmd)
	cmd.Flags().StringVar(&hash, "hash", "", "content hash of an already-compiled factory")
	cmd.Flags().IntVar(&sampleRate, "rate", 44100, "sample rate")
	cmd.Flags().IntVar(&bufferSize, "buffer", 512, "frames per audio cycle")
	cmd.MarkFlagRequired("hash")
	return cmd
}

func newSession() (*transport.ControlClient, *remotedsp.Registry) {
	return transport.NewControlClient(fmt.Sprintf("http://%s:%d", serverIP, serverPort)), remotedsp.NewRegistry()
}
