package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ineyio/llmstream"
	"github.com/ineyio/llmstream/sink"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "llmstream %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Ask the active model; reads the prompt from stdin when no arguments are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := buildGateway(cmd)
			if err != nil {
				return err
			}

			prompt := strings.Join(args, " ")
			if prompt == "" {
				if prompt, err = readAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			s, err := gw.Ask(ctx, prompt, sink.NewWriter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			return s.Wait()
		},
	}
}

func modifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify",
		Short: "Rewrite text from stdin (or --file) according to an instruction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instruction, _ := cmd.Flags().GetString("instruction")
			path, _ := cmd.Flags().GetString("file")

			gw, err := buildGateway(cmd)
			if err != nil {
				return err
			}

			var selected string
			if path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				selected = string(data)
			} else if selected, err = readAll(cmd.InOrStdin()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			s, err := gw.Modify(ctx, selected, instruction, sink.NewWriter(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			return s.Wait()
		},
	}
	cmd.Flags().StringP("instruction", "i", "", "How to change the text")
	cmd.Flags().StringP("file", "f", "", "Read the text from this file instead of stdin")
	_ = cmd.MarkFlagRequired("instruction")
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models; * marks the active one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := buildGateway(cmd)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), gw.ListModels())
			return nil
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session: /models, /model <id>, /quit, anything else is asked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := buildGateway(cmd)
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), gw, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runREPL(ctx context.Context, gw *llmstream.Gateway, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	w := sink.NewWriter(out)

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/models":
			fmt.Fprint(out, gw.ListModels())
		case strings.HasPrefix(line, "/model "):
			msg, _ := gw.SetModel(ctx, strings.TrimPrefix(line, "/model "))
			fmt.Fprintln(out, msg)
		default:
			if err := askOnce(ctx, gw, line, w); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func askOnce(ctx context.Context, gw *llmstream.Gateway, prompt string, w llmstream.Sink) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	s, err := gw.Ask(ctx, prompt, w)
	if err != nil {
		return err
	}
	return s.Wait()
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
