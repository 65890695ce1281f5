package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/markbates/goth/gothic"

	"github.com/arenakit/arenabot/internal/bracket"
	"github.com/arenakit/arenabot/internal/httputil"
	"github.com/arenakit/arenabot/internal/identity"
	"github.com/arenakit/arenabot/internal/ladder"
	"github.com/arenakit/arenabot/internal/middleware"
	"github.com/arenakit/arenabot/internal/player"
	"github.com/arenakit/arenabot/internal/prompt"
	"github.com/arenakit/arenabot/internal/store"
)

type app struct {
	session   *scs.SessionManager
	engine    *bracket.Engine
	sequencer *ladder.Sequencer
	ladder    *ladder.Service
	members   *store.MemberStore
	history   *store.HistoryStore
	hub       *prompt.Hub
	ownerID   string
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(a.session.LoadAndSave)
	r.Use(middleware.Actor(a.session))

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		name := gothUser.NickName
		if name == "" {
			name = gothUser.Name
		}
		p := player.Player{ID: gothUser.UserID, Name: name}
		if err := a.members.Upsert(r.Context(), p); err != nil {
			httputil.InternalServerError(w, "Failed to register member", err)
			return
		}

		a.session.Put(r.Context(), middleware.SessionPlayerKey, p.ID)
		http.Redirect(w, r, "/", http.StatusFound)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		a.session.Destroy(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/members", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := httputil.Decode(r, &body); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}
		if body.ID == "" || body.Name == "" {
			httputil.BadRequest(w, "id and name are required", nil)
			return
		}
		if err := a.members.Upsert(r.Context(), player.Player{ID: body.ID, Name: body.Name}); err != nil {
			httputil.InternalServerError(w, "Failed to register member", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/members", func(w http.ResponseWriter, r *http.Request) {
		members, err := a.members.List(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to list members", err)
			return
		}
		httputil.JSON(w, http.StatusOK, members)
	})

	r.Get("/channels/{channelID}/feed", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, a.hub.Feed(chi.URLParam(r, "channelID")))
	})

	r.Get("/channels/{channelID}/prompts", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, a.hub.Pending(chi.URLParam(r, "channelID")))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor)

		r.Post("/prompts/{promptID}", func(w http.ResponseWriter, r *http.Request) {
			actor, _ := middleware.ActorID(r.Context())
			var body struct {
				Value string `json:"value"`
			}
			if err := httputil.Decode(r, &body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			err := a.hub.Respond(chi.URLParam(r, "promptID"), actor, body.Value)
			switch {
			case errors.Is(err, prompt.ErrNotFound):
				httputil.NotFound(w, "No such prompt", err)
			case errors.Is(err, prompt.ErrNotAllowed):
				httputil.Forbidden(w, "This prompt is not for you")
			case errors.Is(err, prompt.ErrInvalidChoice):
				httputil.BadRequest(w, "Not one of the offered options", err)
			case err != nil:
				httputil.InternalServerError(w, "Failed to respond", err)
			default:
				w.WriteHeader(http.StatusNoContent)
			}
		})

		r.Route("/channels/{channelID}/bracket", func(r chi.Router) {
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Format string `json:"format"`
				}
				if err := httputil.Decode(r, &body); err != nil {
					httputil.BadRequest(w, "Invalid request body", err)
					return
				}
				format := bracket.SingleElimination
				if body.Format == string(bracket.DoubleElimination) {
					format = bracket.DoubleElimination
				}
				if err := a.engine.Create(channelID(r), format); err != nil {
					writeBracketError(w, err)
					return
				}
				w.WriteHeader(http.StatusCreated)
			})

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				if err := a.engine.Stop(channelID(r)); err != nil {
					writeBracketError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				snapshot, err := a.engine.Snapshot(channelID(r))
				if err != nil {
					writeBracketError(w, err)
					return
				}
				httputil.JSON(w, http.StatusOK, snapshot)
			})

			r.Post("/join", func(w http.ResponseWriter, r *http.Request) {
				actor, _ := middleware.ActorID(r.Context())
				p, err := a.members.Resolve(r.Context(), actor)
				if err != nil {
					writeLadderError(w, err)
					return
				}
				if err := a.engine.Join(channelID(r), p); err != nil {
					writeBracketError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/leave", func(w http.ResponseWriter, r *http.Request) {
				actor, _ := middleware.ActorID(r.Context())
				if err := a.engine.Leave(channelID(r), actor); err != nil {
					writeBracketError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
				if err := a.engine.Start(channelID(r)); err != nil {
					writeBracketError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/checkin", func(w http.ResponseWriter, r *http.Request) {
				actor, _ := middleware.ActorID(r.Context())
				if err := a.engine.CheckIn(channelID(r), actor); err != nil {
					writeBracketError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			// Blocks while both players confirm the reported result.
			r.Post("/report", func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					WinnerID string `json:"winner_id"`
					LoserID  string `json:"loser_id"`
				}
				if err := httputil.Decode(r, &body); err != nil {
					httputil.BadRequest(w, "Invalid request body", err)
					return
				}
				if err := a.engine.ReportWin(r.Context(), channelID(r), body.WinnerID, body.LoserID); err != nil {
					writeBracketError(w, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})

		r.Route("/guilds/{guildID}", func(r chi.Router) {
			r.Post("/sets", func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					ChannelID string `json:"channel_id"`
					Player1ID string `json:"player1_id"`
					Player2ID string `json:"player2_id"`
				}
				if err := httputil.Decode(r, &body); err != nil {
					httputil.BadRequest(w, "Invalid request body", err)
					return
				}
				if body.ChannelID == "" {
					httputil.BadRequest(w, "channel_id is required", nil)
					return
				}
				p1, err := a.members.Resolve(r.Context(), body.Player1ID)
				if err != nil {
					writeLadderError(w, err)
					return
				}
				p2, err := a.members.Resolve(r.Context(), body.Player2ID)
				if err != nil {
					writeLadderError(w, err)
					return
				}
				if p1.ID == p2.ID {
					httputil.BadRequest(w, ladder.ErrSamePlayer.Error(), nil)
					return
				}
				if _, live := a.sequencer.Current(body.ChannelID); live {
					httputil.Conflict(w, ladder.ErrSetInProgress.Error(), nil)
					return
				}

				guild := guildID(r)
				go func() {
					if err := a.sequencer.Run(context.Background(), guild, body.ChannelID, p1, p2); err != nil {
						slog.Warn("set ended with error", "channel", body.ChannelID, "error", err)
					}
				}()
				httputil.JSON(w, http.StatusAccepted, map[string]string{"status": "started"})
			})

			r.Get("/sets/{channelID}", func(w http.ResponseWriter, r *http.Request) {
				set, live := a.sequencer.Current(chi.URLParam(r, "channelID"))
				if !live {
					httputil.NotFound(w, "No live set in this channel", nil)
					return
				}
				httputil.JSON(w, http.StatusOK, set)
			})

			r.Post("/wins", func(w http.ResponseWriter, r *http.Request) {
				actor, _ := middleware.ActorID(r.Context())
				var body struct {
					WinnerID string `json:"winner_id"`
					LoserID  string `json:"loser_id"`
				}
				if err := httputil.Decode(r, &body); err != nil {
					httputil.BadRequest(w, "Invalid request body", err)
					return
				}
				report, err := a.ladder.RecordWin(r.Context(), guildID(r), actor, body.WinnerID, body.LoserID)
				if err != nil {
					writeLadderError(w, err)
					return
				}
				httputil.JSON(w, http.StatusOK, report)
			})

			r.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
				top, err := a.ladder.Top(r.Context(), guildID(r))
				if err != nil {
					writeLadderError(w, err)
					return
				}
				httputil.JSON(w, http.StatusOK, top)
			})

			r.Get("/players/{playerID}/points", func(w http.ResponseWriter, r *http.Request) {
				entry, err := a.ladder.Points(r.Context(), guildID(r), chi.URLParam(r, "playerID"))
				if err != nil {
					writeLadderError(w, err)
					return
				}
				httputil.JSON(w, http.StatusOK, entry)
			})

			r.Get("/history/sets", func(w http.ResponseWriter, r *http.Request) {
				records, err := a.history.RecentSets(r.Context(), guildID(r), historyLimit(r))
				if err != nil {
					httputil.InternalServerError(w, "Failed to load set history", err)
					return
				}
				httputil.JSON(w, http.StatusOK, records)
			})

			r.Get("/history/games", func(w http.ResponseWriter, r *http.Request) {
				records, err := a.history.RecentGames(r.Context(), guildID(r), historyLimit(r))
				if err != nil {
					httputil.InternalServerError(w, "Failed to load game history", err)
					return
				}
				httputil.JSON(w, http.StatusOK, records)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOwner(a.ownerID))

				r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
					if err := a.ladder.Reset(r.Context(), guildID(r)); err != nil {
						writeLadderError(w, err)
						return
					}
					w.WriteHeader(http.StatusNoContent)
				})
			})
		})
	})

	return r
}

func channelID(r *http.Request) string {
	return chi.URLParam(r, "channelID")
}

func guildID(r *http.Request) string {
	return chi.URLParam(r, "guildID")
}

func historyLimit(r *http.Request) int {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

func writeBracketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bracket.ErrNotFound):
		httputil.NotFound(w, err.Error(), nil)
	case errors.Is(err, bracket.ErrExists),
		errors.Is(err, bracket.ErrStarted),
		errors.Is(err, bracket.ErrAlreadyJoined),
		errors.Is(err, bracket.ErrReportDeclined):
		httputil.Conflict(w, err.Error(), nil)
	case errors.Is(err, bracket.ErrNotStarted),
		errors.Is(err, bracket.ErrNotJoined),
		errors.Is(err, bracket.ErrNotEnoughPlayers),
		errors.Is(err, bracket.ErrNoActiveMatch),
		errors.Is(err, bracket.ErrNotInMatch),
		errors.Is(err, bracket.ErrNotCheckedIn),
		errors.Is(err, bracket.ErrNoOpenCheckIn):
		httputil.BadRequest(w, err.Error(), nil)
	case errors.Is(err, prompt.ErrTimeout):
		httputil.Conflict(w, "confirmation timed out", err)
	default:
		httputil.InternalServerError(w, "Bracket operation failed", err)
	}
}

func writeLadderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrUnknownMember):
		httputil.NotFound(w, err.Error(), nil)
	case errors.Is(err, ladder.ErrSamePlayer):
		httputil.BadRequest(w, err.Error(), nil)
	case errors.Is(err, ladder.ErrCooldownActive):
		httputil.Conflict(w, err.Error(), nil)
	case errors.Is(err, ladder.ErrSetInProgress):
		httputil.Conflict(w, err.Error(), nil)
	default:
		httputil.InternalServerError(w, "Ladder operation failed", err)
	}
}
