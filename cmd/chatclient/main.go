// Package main is the entry point for the terminal chat client.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/api"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/config"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/handler"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/hub"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/interceptor"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/middleware"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/model"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/notify"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/session"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/storage"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport/natshub"
	"github.com/GreenShadeZhang/BotSharp-UI/internal/transport/wshub"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/tracing"
)

type options struct {
	agentID        string
	conversationID string
	email          string
	password       string
}

func main() {
	var opts options
	flag.StringVar(&opts.agentID, "agent", "", "agent to chat with (required)")
	flag.StringVar(&opts.conversationID, "conversation", "", "conversation to join; a new one is started when empty")
	flag.StringVar(&opts.email, "email", "", "log in with a platform account instead of OIDC")
	flag.StringVar(&opts.password, "password", "", "password for -email")
	flag.Parse()

	if opts.agentID == "" {
		fmt.Fprintln(os.Stderr, "-agent is required")
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error("chat client stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *logger.Logger) error {
	log.Info("starting chat client", zap.String("agent_id", opts.agentID), zap.String("transport", cfg.Transport))

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "botsharp-chatclient", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	// Session
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	nav := session.NavigatorFunc(func(_ context.Context, url string) error {
		fmt.Fprintf(os.Stderr, "Open this URL in a browser to continue:\n  %s\n", url)
		return nil
	})

	legacy := session.NewLegacySource(store, cfg.LegacyTokenURL(), httpClient, log)
	var oidc *session.OIDCSource
	if cfg.OIDCClientID != "" {
		oidc = session.NewOIDCSource(session.OIDCConfigFrom(cfg), store, httpClient, nav, log)
	}
	sess := session.New(legacy, oidc, log)

	if opts.email != "" {
		if err := legacy.Login(ctx, opts.email, opts.password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	// Request pipeline and REST client
	flags := interceptor.NewFlags()
	flags.Watch(func(st interceptor.FlagState) {
		if st.GlobalError {
			fmt.Fprintln(os.Stderr, "! request failed")
		}
	})
	pipeline := interceptor.New(sess, flags,
		interceptor.WithRedirector(sess),
		interceptor.WithErrorDuration(cfg.GlobalErrorDuration),
		interceptor.WithLogger(log),
	)
	client := api.NewClient(cfg.APIBaseURL, pipeline, cfg.HTTPTimeout)

	// Event channel
	var dialer transport.Dialer
	endpoint := cfg.ChatHubURL
	switch cfg.Transport {
	case config.TransportNATS:
		dialer = natshub.NewDialer(natshub.TLSConfig{
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
		}, log)
		endpoint = cfg.NATSURL
	case config.TransportWebSocket:
		dialer = wshub.NewDialer(wshub.WithLogger(log))
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	channel := hub.NewChannel(dialer, endpoint, sess, log)

	// Notifications
	centerOpts := []notify.CenterOption{
		notify.WithCapacity(cfg.NotificationCapacity),
		notify.WithLogger(log),
		notify.WithNotifier(notify.NotifierFunc(func(_ context.Context, n model.Notification) error {
			_, err := fmt.Fprintf(os.Stderr, "* %s: %s\n", n.Title, n.Message)
			return err
		})),
	}
	if cfg.PersistNotifications {
		centerOpts = append(centerOpts, notify.WithStore(store))
	}
	center := notify.NewCenter(centerOpts...)
	if err := center.Load(ctx); err != nil {
		log.Warn("failed to restore notifications", zap.Error(err))
	}
	overlay := notify.NewOverlay(center, notify.WithMaxLength(cfg.NotificationMaxLength), notify.WithOverlayLogger(log))
	overlay.Attach(channel)

	// Companion API
	loggedIn := make(chan struct{}, 1)
	onLogin := func(ctx context.Context) {
		select {
		case loggedIn <- struct{}{}:
		default:
		}
		// the channel reads its token once per start
		if id := channel.ConversationID(); id != "" {
			channel.Start(ctx, id)
		}
	}

	var flow handler.LoginFlow
	if oidc != nil {
		flow = oidc
	}
	server := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: handler.NewRouter(handler.RouterConfig{
			Health:            handler.NewHealthHandler(channel),
			Status:            handler.NewStatusHandler(flags, channel, sess, center),
			Notifications:     handler.NewNotificationHandler(center, log),
			Auth:              handler.NewAuthHandler(flow, sess, onLogin, log),
			Events:            handler.NewEventsHandler(channel, center, log),
			Secret:            cfg.CompanionSecret,
			CORSOrigins:       cfg.CORSOrigins,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
			Logger:            log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.Info("companion API listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("companion API error", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("companion API forced to shutdown", zap.Error(err))
		}
	}()

	if !sess.IsAuthenticated(ctx) {
		if err := sess.RedirectToLogin(ctx); err != nil {
			if errors.Is(err, session.ErrNoLoginFlow) {
				return errors.New("not authenticated: pass -email and -password")
			}
			return fmt.Errorf("start login: %w", err)
		}
		select {
		case <-loggedIn:
		case <-ctx.Done():
			return nil
		}
	}

	if user, err := client.Me(ctx); err != nil {
		log.Warn("failed to load current user", zap.Error(err))
	} else {
		log.Info("signed in", zap.String("user_id", user.ID), zap.String("user_name", user.UserName))
	}

	conversationID := opts.conversationID
	if err := middleware.ValidateAgentID(opts.agentID); err != nil {
		return err
	}
	if conversationID == "" {
		conv, err := client.NewConversation(ctx, opts.agentID, &model.NewConversationRequest{})
		if err != nil {
			return fmt.Errorf("start conversation: %w", err)
		}
		conversationID = conv.ID
		log.Info("started conversation", zap.String("conversation_id", conversationID))
	} else if err := middleware.ValidateConversationID(conversationID); err != nil {
		return err
	}

	out := newTranscript(os.Stdout)
	printHistory(ctx, client, conversationID, out, log)

	follow(channel, out, log)
	channel.OnError(func(err error) {
		var cerr *hub.ConnectionError
		if errors.As(err, &cerr) {
			overlay.AddError(context.Background(), "lost connection to the chat hub")
		}
	})

	// notifications for this conversation are printed by the transcript
	overlay.SetCurrentConversation(conversationID)
	channel.Start(ctx, conversationID)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		channel.Stop(stopCtx)
	}()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return nil
			}
			if err := middleware.ValidateMessageContent(line); err != nil {
				continue
			}
			if _, err := client.SendMessage(ctx, opts.agentID, conversationID, &model.SendMessageRequest{Text: line}); err != nil {
				log.Warn("failed to send message", zap.Error(err))
				overlay.AddError(ctx, "message not sent: "+err.Error())
			}
		}
	}
}

func printHistory(ctx context.Context, client *api.Client, conversationID string, out *transcript, log *logger.Logger) {
	dialogs, err := client.GetDialogs(ctx, conversationID)
	if err != nil {
		log.Warn("failed to load conversation history", zap.Error(err))
		return
	}
	for _, d := range dialogs {
		prefix := "you> "
		if d.SenderRole() == model.RoleAssistant {
			prefix = assistantPrefix
		}
		out.Line(prefix, d.Text)
	}
}

func readLines(in *os.File, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- strings.TrimSpace(scanner.Text())
	}
}
