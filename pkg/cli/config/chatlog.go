package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/oppuna-lab/oppuna/pkg/domain/interfaces"
	"github.com/oppuna-lab/oppuna/pkg/repository/chatlog"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

// ChatLog holds CLI flags for the transcript database
type ChatLog struct {
	path string
}

// Flags returns CLI flags for transcript configuration
func (c *ChatLog) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "chatlog-path",
			Usage:       "Path to the SQLite transcript database (:memory: for ephemeral)",
			Value:       "./data/chatlog.db",
			Sources:     cli.EnvVars("OPPUNA_CHATLOG_PATH"),
			Destination: &c.path,
		},
	}
}

// Configure opens the transcript database. The caller is responsible for
// calling Close() on the returned repository.
func (c *ChatLog) Configure() (interfaces.ChatLogRepository, error) {
	repo, err := chatlog.NewSQLite(c.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize chat log repository")
	}

	logging.Default().Info("Using SQLite chat log", "path", c.path)
	return repo, nil
}
