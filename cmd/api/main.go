package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/robfig/cron/v3"

	"github.com/quicknet-il/support-bot-be/internal/core/analytics"
	"github.com/quicknet-il/support-bot-be/internal/core/channel"
	"github.com/quicknet-il/support-bot-be/internal/core/escalation"
	"github.com/quicknet-il/support-bot-be/internal/core/guardrail"
	"github.com/quicknet-il/support-bot-be/internal/core/jobs"
	"github.com/quicknet-il/support-bot-be/internal/core/llm"
	"github.com/quicknet-il/support-bot-be/internal/core/notification"
	"github.com/quicknet-il/support-bot-be/internal/core/reply"
	"github.com/quicknet-il/support-bot-be/internal/engine"
	"github.com/quicknet-il/support-bot-be/internal/handlers"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
	"github.com/quicknet-il/support-bot-be/internal/shared/config"
	"github.com/quicknet-il/support-bot-be/internal/shared/database"
	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

func main() {
	cfg := config.LoadConfig()
	utils.InitLogger()
	log.Printf("🚀 Starting support-bot-api on port %s", cfg.Port)

	db := database.NewDB(cfg.DatabaseURL)
	defer db.Close()

	// Repositories
	conversationRepo := repositories.NewConversationRepo(db.GORM)
	templateRepo := repositories.NewTemplateRepo(db.GORM)
	policyRepo := repositories.NewPolicyRepo(db.GORM)
	handoffRepo := repositories.NewHandoffRepo(db.GORM)
	analyticsRepo := repositories.NewAnalyticsRepo(db.GORM)

	// LLM service (multi-provider: openai / groq / deepseek)
	llmService := llm.NewService()
	log.Printf("🤖 Using LLM provider: %s", llmService.GetProviderName())

	// Channel adapters: a channel with no credentials is disabled, the
	// rest of the service keeps running.
	var whatsappAdapter *channel.WhatsAppAdapter
	if cfg.WhatsAppPhoneID != "" && cfg.WhatsAppAccessToken != "" {
		var err error
		whatsappAdapter, err = channel.NewWhatsAppAdapter(channel.WhatsAppConfig{
			PhoneID:     cfg.WhatsAppPhoneID,
			AccessToken: cfg.WhatsAppAccessToken,
			VerifyToken: cfg.WhatsAppVerifyToken,
		})
		if err != nil {
			log.Fatalf("❌ Failed to init WhatsApp adapter: %v", err)
		}
	} else {
		log.Println("⚠️ WhatsApp credentials not set, channel disabled")
	}

	var smsAdapter *channel.SMSAdapter
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		var err error
		smsAdapter, err = channel.NewSMSAdapter(channel.SMSConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioSMSFrom,
		})
		if err != nil {
			log.Fatalf("❌ Failed to init SMS adapter: %v", err)
		}
	} else {
		log.Println("⚠️ Twilio credentials not set, SMS channel disabled")
	}

	// Admin notifications go through the job queue so a slow Cloud API
	// call never sits inside a user turn.
	queue := jobs.NewQueue(db.GORM)
	var notifier notification.Sender = notification.NoopSender{}
	worker := jobs.NewWorker(queue, jobs.DefaultWorkerConfig())
	if cfg.AdminPhone != "" && whatsappAdapter != nil {
		notifier = notification.NewQueueSender(queue)
		directSender, err := notification.NewWhatsAppSender(whatsappAdapter, cfg.AdminPhone)
		if err != nil {
			log.Fatalf("❌ Failed to init admin notifier: %v", err)
		}
		worker.RegisterHandler(notification.NewJobHandler(directSender))
	} else {
		log.Println("⚠️ Admin notifications disabled (set ADMIN_PHONE and WhatsApp credentials)")
	}
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker.Start(workerCtx)

	// Engine
	guard := guardrail.NewEngine(policyRepo)
	generator := reply.NewGenerator(templateRepo, llmService, "كويك نت", cfg.AITimeout)
	machine := escalation.NewMachine(conversationRepo, handoffRepo, notifier, cfg.UnknownStreak)
	recorder := analytics.NewRecorder(analyticsRepo)
	pipeline := engine.NewPipeline(conversationRepo, guard, generator, machine, recorder)
	sweeper := engine.NewSweeper(conversationRepo, cfg.WebchatIdleClose, cfg.MessagingIdleClose)

	// Scheduled maintenance
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		sweeper.CloseIdle(ctx)
	}); err != nil {
		log.Fatalf("❌ Failed to schedule idle sweep: %v", err)
	}
	if _, err := scheduler.AddFunc("30 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if n, err := queue.PurgeFinished(ctx, 7*24*time.Hour); err == nil && n > 0 {
			log.Printf("🧹 Purged %d finished jobs", n)
		}
	}); err != nil {
		log.Fatalf("❌ Failed to schedule job purge: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Handlers
	chatHandler := handlers.NewChatHandler(pipeline)
	adminHandler := handlers.NewAdminHandler(templateRepo, policyRepo, handoffRepo, conversationRepo, machine)
	analyticsHandler := handlers.NewAnalyticsHandler(recorder)
	contactHandler := handlers.NewContactHandler(notifier)
	healthHandler := handlers.NewHealthHandler(llmService)

	app := fiber.New(fiber.Config{
		AppName: "Support Bot API",
	})
	app.Use(cors.New())

	// Health check
	app.Get("/health", healthHandler.GetHealth)

	// Webchat
	app.Post("/chat", chatHandler.SendMessage)

	// Channel webhooks
	if whatsappAdapter != nil {
		whatsappHandler := handlers.NewWhatsAppHandler(pipeline, whatsappAdapter)
		app.Get("/webhooks/whatsapp", whatsappHandler.Verify)
		app.Post("/webhooks/whatsapp", whatsappHandler.Receive)
	}
	if smsAdapter != nil {
		smsHandler := handlers.NewSMSHandler(pipeline, smsAdapter)
		app.Post("/webhooks/sms", smsHandler.Receive)
	}

	// Website events
	app.Post("/contact", contactHandler.Submit)
	app.Post("/events/csat", analyticsHandler.RecordCsat)
	app.Post("/events/store-click", analyticsHandler.RecordStoreClick)

	// Admin
	admin := app.Group("/admin")
	admin.Get("/templates", adminHandler.ListTemplates)
	admin.Post("/templates", adminHandler.CreateTemplate)
	admin.Put("/templates/:id", adminHandler.UpdateTemplate)
	admin.Get("/policies", adminHandler.ListPolicies)
	admin.Post("/policies", adminHandler.CreatePolicy)
	admin.Put("/policies/:id", adminHandler.UpdatePolicy)
	admin.Get("/handoffs", adminHandler.ListHandoffs)
	admin.Post("/handoffs/:id/resolve", adminHandler.ResolveHandoff)
	admin.Get("/conversations", adminHandler.ListConversations)
	admin.Get("/conversations/:id/messages", adminHandler.GetTranscript)
	admin.Post("/conversations/:id/close", adminHandler.CloseConversation)
	admin.Post("/conversations/:id/escalate", adminHandler.EscalateConversation)
	admin.Get("/analytics/daily", analyticsHandler.Daily)
	admin.Get("/analytics/summary", analyticsHandler.Summary)

	log.Printf("✅ support-bot-api running at :%s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
