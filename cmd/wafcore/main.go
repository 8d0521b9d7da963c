// Command wafcore runs the WAF event analysis and escalation core: the HTTP
// control surface, the Grouper, both job-queue worker pools, the
// Escalation Processor, and the campaign monitor, all sharing one Store and
// one Agent Client.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/wafcore/pkg/agentclient"
	wafapi "github.com/codeready-toolchain/wafcore/pkg/api"
	"github.com/codeready-toolchain/wafcore/pkg/campaignmonitor"
	wafconfig "github.com/codeready-toolchain/wafcore/pkg/config"
	"github.com/codeready-toolchain/wafcore/pkg/database"
	"github.com/codeready-toolchain/wafcore/pkg/escalation"
	"github.com/codeready-toolchain/wafcore/pkg/grouper"
	"github.com/codeready-toolchain/wafcore/pkg/metrics"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	wafslack "github.com/codeready-toolchain/wafcore/pkg/slack"
	"github.com/codeready-toolchain/wafcore/pkg/store"
	"github.com/codeready-toolchain/wafcore/pkg/worker"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "debug"))

	log.Printf("Starting wafcore")

	ctx := context.Background()

	cfg, err := wafconfig.Load(filepath.Join(*configDir, "wafcore.yaml"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL, migrations applied")

	st := store.New(dbClient)
	m := metrics.New()

	agentClient := buildAgentClient(cfg, m)

	grp := grouper.New(st, grouper.Config{Schedule: cfg.GrouperCron, AutoEnqueue: true, Metrics: m})
	if err := grp.Start(ctx); err != nil {
		log.Fatalf("Failed to start grouper: %v", err)
	}
	defer grp.Stop()

	analyzedBy := "wafcore"

	singlePool := worker.NewPool(models.QueueSingle, st, &worker.SingleJobExecutor{Store: st, AgentClient: agentClient, AnalyzedBy: analyzedBy}, worker.Config{
		WorkerCount:    cfg.Queue.SingleWorkerCount,
		ConcurrencyCap: cfg.Queue.SingleConcurrency,
		PollInterval:   time.Duration(cfg.Queue.PollIntervalMS) * time.Millisecond,
		ShutdownGrace:  10 * time.Minute,
		Metrics:        m,
	})
	singlePool.Start(ctx)
	defer singlePool.Stop()

	groupPool := worker.NewPool(models.QueueGroup, st, &worker.GroupJobExecutor{Store: st, AgentClient: agentClient, AnalyzedBy: analyzedBy}, worker.Config{
		WorkerCount:    cfg.Queue.GroupWorkerCount,
		ConcurrencyCap: cfg.Queue.GroupConcurrency,
		PollInterval:   time.Duration(cfg.Queue.PollIntervalMS) * time.Millisecond,
		ShutdownGrace:  10 * time.Minute,
		Metrics:        m,
	})
	groupPool.Start(ctx)
	defer groupPool.Stop()

	sinks := buildSinks(st, cfg)
	proc := escalation.New(st, sinks, escalation.Config{Schedule: cfg.EscalationCron, Limit: cfg.EscalationLimit, Metrics: m})
	if err := proc.Start(ctx); err != nil {
		log.Fatalf("Failed to start escalation processor: %v", err)
	}
	defer proc.Stop()

	monitor := campaignmonitor.New(st, agentClient, campaignmonitor.Config{
		Schedule: cfg.CampaignCron,
		Lookback: cfg.CampaignLookback,
		Metrics:  m,
	})
	if err := monitor.Start(ctx); err != nil {
		log.Fatalf("Failed to start campaign monitor: %v", err)
	}
	defer monitor.Stop()

	log.Println("Grouper, worker pools, escalation processor, and campaign monitor started")

	router := buildRouter(st, grp, singlePool, groupPool)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Printf("HTTP server listening on :%s", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildAgentClient(cfg *wafconfig.Resolved, m *metrics.Metrics) *agentclient.Client {
	apiKey := os.Getenv(cfg.Agents.AnthropicAPIKeyEnv)

	models := map[agentclient.AgentName]string{
		agentclient.AgentSingleAnalyzer: cfg.Agents.Single.Model,
		agentclient.AgentGroupAnalyzer:  cfg.Agents.Group.Model,
	}
	anthropicBackend := agentclient.NewAnthropicBackend(apiKey, models)

	langchainBackend, err := agentclient.NewLangchainBackend(apiKey, cfg.Agents.Campaign.Model)
	if err != nil {
		slog.Error("failed to construct langchain backend, campaign detection will error at call time", "error", err)
	}

	agents := map[agentclient.AgentName]agentclient.AgentConfig{
		agentclient.AgentSingleAnalyzer: {Backend: agentclient.Backend(cfg.Agents.Single.Backend), Model: cfg.Agents.Single.Model},
		agentclient.AgentGroupAnalyzer:  {Backend: agentclient.Backend(cfg.Agents.Group.Backend), Model: cfg.Agents.Group.Model},
		agentclient.AgentMonitor:        {Backend: agentclient.Backend(cfg.Agents.Campaign.Backend), Model: cfg.Agents.Campaign.Model},
	}

	return agentclient.New(agentclient.Config{Agents: agents, Metrics: m}, anthropicBackend, langchainBackend)
}

func buildSinks(st *store.Store, cfg *wafconfig.Resolved) []escalation.Sink {
	var sinks []escalation.Sink

	slackSvc := wafslack.NewService(wafslack.ServiceConfig{
		Token:   os.Getenv(cfg.Sinks.Slack.TokenEnv),
		Channel: cfg.Sinks.Slack.Channel,
	})
	sinks = append(sinks, &escalation.NotificationSink{Service: slackSvc})

	sinks = append(sinks, escalation.NewTicketSink(escalation.TicketSinkConfig{
		Token: os.Getenv(cfg.Sinks.Ticket.TokenEnv),
		Owner: cfg.Sinks.Ticket.Owner,
		Repo:  cfg.Sinks.Ticket.Repo,
	}))

	if cfg.Sinks.Blocklist.IPSetID != "" {
		blocklistSink, err := escalation.NewBlocklistSink(st, escalation.BlocklistSinkConfig{
			IPSetID:   cfg.Sinks.Blocklist.IPSetID,
			IPSetName: cfg.Sinks.Blocklist.IPSetName,
			Scope:     cfg.Sinks.Blocklist.Scope,
			Region:    cfg.Sinks.Blocklist.Region,
		})
		if err != nil {
			slog.Error("failed to construct blocklist sink, blocklist escalations will not be delivered", "error", err)
		} else {
			sinks = append(sinks, blocklistSink)
		}
	}

	return sinks
}

func buildRouter(st *store.Store, grp *grouper.Grouper, singlePool, groupPool *worker.Pool) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(reqCtx, st.SQLDB())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": dbHealth, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"database":     dbHealth,
			"single_queue": singlePool.Health(reqCtx),
			"group_queue":  groupPool.Health(reqCtx),
		})
	})

	wafapi.RegisterRoutes(router, st, grp)

	return router
}
