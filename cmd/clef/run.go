package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/chat"
	"github.com/clefbot/clef/internal/commands"
	"github.com/clefbot/clef/internal/config"
	"github.com/clefbot/clef/internal/cooldown"
	"github.com/clefbot/clef/internal/db"
	"github.com/clefbot/clef/internal/history"
	"github.com/clefbot/clef/internal/injector"
	"github.com/clefbot/clef/internal/logging"
	"github.com/clefbot/clef/internal/moderation"
	"github.com/clefbot/clef/internal/oauthredirect"
	"github.com/clefbot/clef/internal/platform"
	"github.com/clefbot/clef/internal/player"
	"github.com/clefbot/clef/internal/registry"
	"github.com/clefbot/clef/internal/roles"
	"github.com/clefbot/clef/internal/scripts"
	"github.com/clefbot/clef/internal/settings"
	"github.com/clefbot/clef/internal/token"
	"github.com/clefbot/clef/internal/webapi"
)

func newRunCmd() *cobra.Command {
	var tokenFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join chat, mix playback, and serve the web API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClef(cmd.Context(), tokenFile)
		},
	}
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "path to the issued OAuth token (defaults to CLEF_TOKEN_FILE)")
	return cmd
}

func runClef(ctx context.Context, tokenFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	conn, err := db.Open(ctx, db.Config{DSN: cfg.DatabaseDSN})
	if err != nil {
		log.Fatal("failed to open database", logging.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn, log); err != nil {
		log.Fatal("failed to apply database migrations", logging.Error(err))
	}

	schema, err := settings.LoadSchema(cfg.SettingsSchema)
	if err != nil {
		log.Fatal("failed to load settings schema", logging.Error(err))
	}
	settingsStore, err := settings.Open(ctx, schema, db.NewSettingsRepo(conn), log)
	if err != nil {
		log.Fatal("failed to open settings store", logging.Error(err))
	}

	badWords := moderation.NewBadWords(settingsStore)
	urlWhitelist := moderation.NewURLWhitelist(settingsStore)

	historyWriter, err := history.Open(cfg.HistoryDir, cfg.Chat.StreamerLogin, true, nil)
	if err != nil {
		log.Fatal("failed to open history log", logging.Error(err))
	}
	defer historyWriter.Close()

	platformTokenPath := resolveTokenFile(tokenFile)
	platformSeed, err := loadTokenFile(platformTokenPath)
	if err != nil {
		log.Fatal("failed to load platform token file; run `clef token issue` first", logging.Error(err), logging.String("token_file", platformTokenPath))
	}
	platformManager := newTokenManager(ctx, log, platformSeed, platformRefresher(cfg.OAuth, platformSeed))

	spotifyTokenPath := resolveTokenFile("")
	var spotifyManager *token.Manager
	if spotifySeed, err := loadTokenFile(spotifyTokenPath); err != nil {
		log.Warn("spotify token unavailable; spotify playback will stay disabled", logging.Error(err))
	} else {
		spotifyManager = newTokenManager(ctx, log, spotifySeed, spotifyRefresher(cfg.OAuth, spotifySeed))
	}

	platformClient := platform.New(ctx, newManagerTokenSource(ctx, platformManager), cfg.Chat.StreamerLogin)
	rolesStore := roles.New(platformClient, cfg.Chat.RoleRefreshInterval, log)
	go rolesStore.Run(ctx)

	var spotifyBackend *player.SpotifyBackend
	var spotifySDK *spotifyapi.Client
	if spotifyManager != nil {
		httpClient := oauth2.NewClient(ctx, newManagerTokenSource(ctx, spotifyManager))
		spotifySDK = spotifyapi.New(httpClient)
		spotifyBackend = player.NewSpotifyBackend(spotifySDK, 5*time.Second, log)
	}

	overlayCmds := bus.New[player.OverlayCommand]()
	playerEvents := bus.New[player.Event]()
	notifications := bus.New[chat.Notification]()

	var youtubeBackend *player.YouTubeBackend
	var youtubeLookup player.VideoLookup
	if cfg.OAuth.PlatformID != "" {
		ytSvc, err := youtubeapi.NewService(ctx, option.WithHTTPClient(http.DefaultClient))
		if err != nil {
			log.Warn("youtube data API unavailable; song requests will reject youtube links", logging.Error(err))
		} else {
			youtubeLookup = player.NewAPIVideoLookup(ytSvc)
		}
	}
	youtubeBackend = player.NewYouTubeBackend(overlayCmds, func(videoID string) {
		log.Debug("youtube overlay reported end of track", logging.String("video_id", videoID))
	})

	queueRepo := db.NewQueueRepo(ctx, conn)
	mixer, err := player.New(player.Config{
		MaxQueueLength:  100,
		MaxSongsPerUser: 3,
	}, queueRepo)
	if err != nil {
		log.Fatal("failed to initialize playback mixer", logging.Error(err))
	}

	core := player.NewCore(mixer, injector.New(), playerEvents, spotifyBackend, youtubeBackend)
	go player.WatchSettings(ctx, core, settingsStore, log)

	resolver := &commands.MultiResolver{}
	if spotifySDK != nil {
		resolver.Spotify = commands.NewSpotifyResolver(spotifySDK)
	}
	if youtubeLookup != nil {
		resolver.YouTube = commands.NewYouTubeResolver(youtubeLookup)
	}

	reg := registry.New()
	commands.Register(reg, commands.Config{
		Core:               core,
		Mixer:              mixer,
		Resolver:           resolver,
		MaxRequestDuration: 10 * time.Minute,
	})

	scriptsBridge, err := scripts.New(cfg.ScriptDir, reg, scripts.NewTemplateLoader(), log)
	if err != nil {
		log.Fatal("failed to initialize script bridge", logging.Error(err))
	}
	go func() {
		if err := scriptsBridge.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("script bridge stopped", logging.Error(err))
		}
	}()

	aliasStore := db.NewChatAliasStore(db.NewAliasRepo(conn))
	commandDB := db.NewChatCommandDB(db.NewCommandRepo(conn))

	newRouter := func(sender *chat.Sender) *chat.Router {
		handler := chat.NewHandler(chat.Config{
			Sender:        sender,
			Registry:      reg,
			Aliases:       aliasStore,
			Commands:      commandDB,
			Cooldowns:     cooldown.NewScopeCooldowns(3 * time.Second),
			Idle:          cooldown.NewIdle(cfg.IdleThreshold),
			Notify:        notifications,
			BadWords:      badWords,
			URLWhitelist:  urlWhitelist,
			StreamerLogin: cfg.Chat.StreamerLogin,
		})
		return chat.NewRouter(chat.RouterConfig{
			Handler:       handler,
			Roles:         rolesStore,
			History:       historyWriter,
			StreamerLogin: cfg.Chat.StreamerLogin,
		})
	}

	chatLoop := chat.NewLoop(chat.LoopConfig{
		Dial:               chat.DialTLS(cfg.Chat.Addr),
		StreamerLogin:      cfg.Chat.StreamerLogin,
		NewRouter:          newRouter,
		Credentials:        platformCredentials(platformManager, cfg.Chat.BotLogin),
		RateLimitPerSecond: cfg.Chat.RateLimitPerSecond,
		RateLimitBurst:     cfg.Chat.RateLimitBurst,
		PingInterval:       cfg.Chat.PingInterval,
		PongTimeout:        cfg.Chat.PongTimeout,
		JoinMessage:        cfg.Chat.JoinMessage,
		LeaveMessage:       cfg.Chat.LeaveMessage,
		Log:                log,

		ReconnectBackoffInitial: cfg.Chat.ReconnectBackoffMin,
	})
	go func() {
		if err := chatLoop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("chat loop stopped", logging.Error(err))
		}
	}()

	notificationHub := webapi.NewHub[chat.Notification](notifications, webapi.NewAllowAllAuthenticator(), log)
	playerHub := webapi.NewHub[player.Event](playerEvents, webapi.NewAllowAllAuthenticator(), log)
	overlayHub := webapi.NewHub[player.OverlayCommand](overlayCmds, webapi.NewAllowAllAuthenticator(), log)
	go notificationHub.Run(ctx)
	go playerHub.Run(ctx)
	go overlayHub.Run(ctx)

	redirectSrv := oauthredirect.New(log)
	go redirectSrv.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws/notifications", notificationHub)
	mux.Handle("/ws/player", playerHub)
	mux.Handle("/ws/overlay", overlayHub)
	mux.Handle(cfg.OAuth.RedirectPath, redirectSrv.Handler())
	settings.RegisterDocsEndpoint(mux, schema)

	server := &http.Server{Addr: cfg.WebAddr, Handler: mux}
	log.Info("clef web API listening", logging.String("address", cfg.WebAddr))

	if cfg.TLSCertPath != "" {
		if err := server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil && err != http.ErrServerClosed {
			log.Fatal("web API server terminated", logging.Error(err))
		}
		return nil
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("web API server terminated", logging.Error(err))
	}
	return nil
}

// platformRefresher wraps the platform's oauth2.Config as a token.Refresher,
// falling back to the token loaded from disk on the manager's first refresh
// (Manager.ForceRefresh calls Refresh with a nil previous token before one
// has ever been acquired).
func platformRefresher(cfg config.OAuthConfig, seed *oauth2.Token) token.Refresher {
	oauthCfg := platformOAuthConfig(cfg)
	return token.RefresherFunc(func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
		if previous == nil {
			previous = seed
		}
		return oauthCfg.TokenSource(ctx, previous).Token()
	})
}

func spotifyRefresher(cfg config.OAuthConfig, seed *oauth2.Token) token.Refresher {
	authenticator := spotifyAuthenticator(cfg)
	return token.RefresherFunc(func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
		if previous == nil {
			previous = seed
		}
		return authenticator.TokenSource(ctx, previous).Token()
	})
}

// newTokenManager forces one refresh against seed so the manager starts in
// the ready state instead of making every caller wait on the first chat
// message or API call.
func newTokenManager(ctx context.Context, log *logging.Logger, seed *oauth2.Token, refresher token.Refresher) *token.Manager {
	mgr := token.New(refresher)
	if _, err := mgr.ForceRefresh(ctx); err != nil {
		log.Warn("initial token refresh failed; retrying lazily", logging.Error(err))
	}
	return mgr
}

// platformCredentials resolves the live NICK/PASS pair for one chat
// connection attempt from the platform token manager.
func platformCredentials(mgr *token.Manager, botLogin string) chat.BotCredentials {
	return func(ctx context.Context) (string, string, error) {
		if err := mgr.WaitUntilReady(ctx); err != nil {
			return "", "", err
		}
		tok, err := mgr.Read()
		if err != nil {
			return "", "", err
		}
		return botLogin, tok.AccessToken, nil
	}
}
