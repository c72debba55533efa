package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/oppuna-lab/oppuna/pkg/cli/config"
	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/service/llm"
	"github.com/oppuna-lab/oppuna/pkg/utils/safe"
)

// cmdProbe checks connectivity to every configured dependency and reports
// the result per component. It is meant for deploy-time smoke checks.
func cmdProbe() *cli.Command {
	var storeCfg config.Store
	var geminiCfg config.Gemini
	var chatlogCfg config.ChatLog
	var resourcesCfg config.Resources

	var flags []cli.Flag
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, chatlogCfg.Flags()...)
	flags = append(flags, resourcesCfg.Flags()...)

	okMark := color.New(color.FgGreen).Sprint("OK")
	failMark := color.New(color.FgRed).Sprint("FAIL")
	skipMark := color.New(color.FgYellow).Sprint("SKIP")

	return &cli.Command{
		Name:  "probe",
		Usage: "Check connectivity to the configured dependencies",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			var failed bool

			resources, err := resourcesCfg.Configure()
			if err != nil {
				fmt.Printf("[%s] chat resources: %v\n", failMark, err)
				return goerr.Wrap(err, "probe failed")
			}
			fmt.Printf("[%s] chat resources\n", okMark)

			if store, err := storeCfg.Configure(ctx); err != nil {
				fmt.Printf("[%s] vector store (%s): %v\n", failMark, storeCfg.Backend(), err)
				failed = true
			} else if store == nil {
				fmt.Printf("[%s] vector store: in-process memory backend, nothing to probe\n", skipMark)
			} else {
				fmt.Printf("[%s] vector store (%s)\n", okMark, storeCfg.Backend())
				safe.Close(ctx, store)
			}

			if repo, err := chatlogCfg.Configure(); err != nil {
				fmt.Printf("[%s] chat log: %v\n", failMark, err)
				failed = true
			} else {
				fmt.Printf("[%s] chat log\n", okMark)
				safe.Close(ctx, repo)
			}

			gemini, err := geminiCfg.Configure(ctx)
			switch {
			case err != nil:
				fmt.Printf("[%s] model service: %v\n", failMark, err)
				failed = true
			case gemini == nil:
				fmt.Printf("[%s] model service: not configured\n", skipMark)
			default:
				client := llm.NewLiveClient(gemini, resources, model.NewOperationMode(false),
					llm.WithAuxTimeout(10*time.Second))
				if _, err := client.Embed(ctx, "ping"); err != nil {
					fmt.Printf("[%s] model service: %v\n", failMark, err)
					failed = true
				} else {
					fmt.Printf("[%s] model service\n", okMark)
				}
			}

			if failed {
				return goerr.New("one or more probes failed")
			}
			return nil
		},
	}
}
