package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blsuntech/internal/clock"
	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/migration"
	"github.com/smallbiznis/blsuntech/internal/observability"
	"github.com/smallbiznis/blsuntech/internal/scheduler"
	"github.com/smallbiznis/blsuntech/internal/server"
	"github.com/smallbiznis/blsuntech/pkg/db"
	"github.com/smallbiznis/blsuntech/pkg/mongodb"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the webhook replay scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				// Core Infrastructure
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				mongodb.Module,
				clock.Module,
				migration.Module,

				// HTTP API and functional domains
				server.Module,
				scheduler.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}

// RegisterSnowflake builds the id node. SNOWFLAKE_NODE_ID distinguishes replicas.
func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
