package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"syncworker/internal/apihandlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync job HTTP API",
	Long: `Starts an HTTP server to submit sync jobs, poll their progress, stream
progress as server-sent events and expose Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if !log.IsLevelEnabled(log.DebugLevel) {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.Default()

		apiHandler := apihandlers.NewAPIHandler(appInstance)
		apiHandler.Register(router.Group("/api/v1"))

		router.GET("/health", func(c *gin.Context) {
			if err := appInstance.Ping(); err != nil {
				apihandlers.Unavailable(c, err.Error())
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		router.GET("/metrics", gin.WrapH(appInstance.Metrics.Handler()))

		listenAddr := appInstance.Config.Server.Addr
		log.Infof("Starting sync API server on http://%s", listenAddr)
		if err := router.Run(listenAddr); err != nil {
			log.Errorf("Failed to run API server: %v", err)
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on, e.g. 0.0.0.0:8080 (overrides server.addr)")
	configKeys["addr"] = "server.addr"
}
