package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/adapters/media"
	"github.com/voxium/client/internal/adapters/render"
	"github.com/voxium/client/internal/adapters/rtc"
	"github.com/voxium/client/internal/api"
	"github.com/voxium/client/internal/config"
	"github.com/voxium/client/internal/domain"
	"github.com/voxium/client/internal/stream"
	"github.com/voxium/client/internal/voice"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	backend := api.NewClient(cfg.ServerURL)
	self := resolveSelf(ctx, backend, cfg)

	devices, err := media.NewDevices()
	if err != nil {
		log.Fatal().Err(err).Msg("media devices init")
	}
	peers, err := rtc.NewFactory(cfg, devices.Populate)
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc factory init")
	}

	ws := stream.NewClient(stream.Options{
		URL:        cfg.WSURL,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	})

	session := voice.NewSession(*self, cfg.ScreenQuality, cfg.ScreenFps, voice.Deps{
		Signal:  ws,
		Peers:   peers,
		Media:   devices,
		Audio:   render.AudioSinkFactory{},
		Screens: render.NewScreenGrid(),
		Meter:   render.NewMeter(os.Stdout),
		Roster:  render.NewRoster(os.Stdout),
		Prefs:   cfg,
	})
	ws.Subscribe(session)

	go ws.Run(ctx)
	go repl(ctx, cancel, backend, session)

	log.Info().Str("user", self.Username).Str("ws", cfg.WSURL).Msg("Voxium client started")
	<-ctx.Done()
	log.Info().Msg("Shutting down")
	session.Leave()
	log.Info().Msg("Client exited gracefully")
}

func resolveSelf(ctx context.Context, backend *api.Client, cfg *config.Config) *domain.User {
	if cfg.Password != "" {
		if u, err := backend.Login(ctx, cfg.Username, cfg.Password); err == nil {
			log.Info().Str("user", u.Username).Msg("authenticated")
			return u
		} else {
			log.Warn().Err(err).Msg("login failed, continuing as guest")
		}
	}
	u, err := domain.NewUser(cfg.Username)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid username")
	}
	return u
}

func repl(ctx context.Context, cancel context.CancelFunc, backend *api.Client, session *voice.Session) {
	sc := bufio.NewScanner(os.Stdin)
	prompt()
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			prompt()
			continue
		}
		switch fields[0] {
		case "rooms":
			rooms, err := backend.ListRooms(ctx)
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			for _, r := range rooms {
				fmt.Printf("%s  %-8s %s\n", r.ID, r.Kind, r.Name)
			}
		case "join":
			if len(fields) < 2 {
				fmt.Println("usage: join <room-id>")
				break
			}
			room, err := findRoom(ctx, backend, domain.RoomID(fields[1]))
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			if err := session.Join(ctx, *room); err != nil {
				fmt.Println("error:", err)
			}
		case "leave":
			session.Leave()
		case "mute":
			fmt.Println("muted:", session.ToggleMute())
		case "deafen":
			fmt.Println("deafened:", session.ToggleDeafen())
		case "share":
			if err := session.ToggleScreenShare(ctx); err != nil {
				fmt.Println("error:", err)
			}
		case "quality":
			if len(fields) < 3 {
				fmt.Println("usage: quality <720|1080|1440> <15|30|60>")
				break
			}
			if err := session.SetScreenPrefs(fields[1], fields[2]); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("profile:", session.ScreenProfile())
			}
		case "roster":
			for _, m := range session.Roster() {
				fmt.Printf("%s [%s]\n", m.Username, strings.Join(voice.Badges(m), " "))
			}
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Println("commands: rooms join leave mute deafen share quality roster quit")
		}
		prompt()
	}
}

func findRoom(ctx context.Context, backend *api.Client, id domain.RoomID) (*domain.Room, error) {
	rooms, err := backend.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		if rooms[i].ID == id {
			return &rooms[i], nil
		}
	}
	return nil, fmt.Errorf("room %s not found", id)
}

func prompt() { fmt.Print("> ") }
