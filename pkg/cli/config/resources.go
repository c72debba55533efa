package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

// Resources holds CLI flags for chat resource texts
type Resources struct {
	path string
}

// Flags returns CLI flags for chat resource configuration
func (r *Resources) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "chat-resources",
			Usage:       "TOML file overriding the built-in prompts and crisis resources",
			Sources:     cli.EnvVars("OPPUNA_CHAT_RESOURCES"),
			Destination: &r.path,
		},
	}
}

// validateResources checks that a loaded resource set is usable.
func validateResources(res *model.ChatResources) error {
	if res.SystemPrompt == "" {
		return goerr.New("system_prompt is required")
	}
	if res.ApologyReply == "" {
		return goerr.New("apology_reply is required")
	}
	if res.FallbackReply == "" {
		return goerr.New("fallback_reply is required")
	}
	for _, h := range res.Hotlines {
		if h.Name == "" || h.Contact == "" {
			return goerr.New("hotline entries need both name and contact",
				goerr.V("name", h.Name), goerr.V("contact", h.Contact))
		}
	}
	return nil
}

// Configure loads the chat resources. Without a file the built-in defaults
// are used; a file overrides them wholesale.
func (r *Resources) Configure() (*model.ChatResources, error) {
	if r.path == "" {
		return model.DefaultChatResources(), nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read chat resources file", goerr.V("path", r.path))
	}

	res := model.DefaultChatResources()
	if err := toml.Unmarshal(data, res); err != nil {
		return nil, goerr.Wrap(err, "failed to parse chat resources TOML", goerr.V("path", r.path))
	}

	if err := validateResources(res); err != nil {
		return nil, goerr.Wrap(err, "chat resources validation failed", goerr.V("path", r.path))
	}

	logging.Default().Info("Loaded chat resources", "path", r.path)
	return res, nil
}
