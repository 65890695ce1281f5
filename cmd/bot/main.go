package main

import (
	"log"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/arenakit/arenabot/internal/bracket"
	"github.com/arenakit/arenabot/internal/checkin"
	"github.com/arenakit/arenabot/internal/config"
	"github.com/arenakit/arenabot/internal/db"
	"github.com/arenakit/arenabot/internal/ladder"
	"github.com/arenakit/arenabot/internal/middleware"
	"github.com/arenakit/arenabot/internal/prompt"
	"github.com/arenakit/arenabot/internal/schedule"
	"github.com/arenakit/arenabot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Failed to load config:", err)
	}

	database, err := db.Connect(cfg.DSN)
	if err != nil {
		log.Fatalln("Failed to connect to DB:", err)
	}
	defer database.Close()
	log.Println("Database connected.")

	if err := db.Migrate(database, cfg.MigrationsURL); err != nil {
		log.Fatalln("Failed to run migrations:", err)
	}

	middleware.InitAuth(cfg.DiscordKey, cfg.DiscordSecret, cfg.DiscordCallbackURL)

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	hub := prompt.NewHub()
	sched := schedule.New(time.Second)
	sched.Start()
	defer sched.Stop()

	engine := bracket.NewEngine(
		store.NewBracketStore(),
		checkin.NewRegistry(),
		hub,
		hub,
		sched,
		bracket.Config{
			CheckInWindow: cfg.CheckInWindow,
			ConfirmWindow: cfg.ConfirmWindow,
		},
	)

	fighters := ladder.DefaultFighters
	if cfg.FightersFile != "" {
		loaded, err := ladder.LoadFighters(cfg.FightersFile)
		if err != nil {
			log.Fatalln("Failed to load fighter roster:", err)
		}
		fighters = loaded
	}

	ratings := store.NewRatingStore(database)
	historyStore := store.NewHistoryStore(database)
	members := store.NewMemberStore(database)

	sequencer := ladder.NewSequencer(ladder.SequencerConfig{
		Ratings:     ratings,
		History:     historyStore,
		Prompts:     hub,
		Notify:      hub,
		Fighters:    fighters,
		StepTimeout: cfg.StepTimeout,
	})
	ladderService := ladder.NewService(ladder.ServiceConfig{
		Ratings:   ratings,
		Members:   members,
		Cooldowns: store.NewCooldownStore(),
		Cooldown:  cfg.WinCooldown,
		OwnerID:   cfg.OwnerID,
	})

	router := newRouter(&app{
		session:   sessionManager,
		engine:    engine,
		sequencer: sequencer,
		ladder:    ladderService,
		members:   members,
		history:   historyStore,
		hub:       hub,
		ownerID:   cfg.OwnerID,
	})

	log.Println("Server starting on", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatal(err)
	}
}
