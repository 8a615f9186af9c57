package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/revierkompass/revierkompass/cache"
	"github.com/revierkompass/revierkompass/geocoding"
	"github.com/revierkompass/revierkompass/geodist"
	"github.com/revierkompass/revierkompass/geomodel"
	"github.com/revierkompass/revierkompass/routing"
	"github.com/revierkompass/revierkompass/server"
	"github.com/revierkompass/revierkompass/stations"
	"github.com/revierkompass/revierkompass/wizard"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"
)

const (
	geocodeCacheTTL = 24 * time.Hour
	routeCacheTTL   = 15 * time.Minute
	routeCacheSize  = 100
	routeEvictBatch = 20
	sessionTTL      = 30 * time.Minute
	sweepInterval   = 5 * time.Minute
)

func main() {
	app := &cli.App{
		Name:        "revierkompass",
		Description: "Address search and route planning to Baden-Württemberg police stations",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the revierkompass api",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "stations",
						Aliases:   []string{"s"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:  "region",
						Value: "Baden-Württemberg",
					},
					&cli.StringFlag{
						Name:  "nominatim-url",
						Value: "https://nominatim.openstreetmap.org",
					},
					&cli.StringFlag{
						Name:  "photon-url",
						Value: "https://photon.komoot.io",
					},
					&cli.StringSliceFlag{
						Name:        "osrm-url",
						DefaultText: "https://router.project-osrm.org",
					},
					&cli.StringFlag{
						Name:  "valhalla-url",
						Value: "https://valhalla1.openstreetmap.de",
					},
					&cli.StringFlag{
						Name:  "user-agent",
						Value: "RevierKompass/1.0",
					},
					&cli.StringFlag{
						Name:      "geocode-snapshot",
						Usage:     "path for persisting the geocode cache across restarts",
						TakesFile: true,
					},
				},
				Action: serve,
			},
			{
				Name:    "import",
				Aliases: []string{"i"},
				Usage:   "converts a raw police station csv export into a dataset file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "input",
						Aliases:   []string{"i"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "output",
						Aliases:   []string{"o"},
						Required:  true,
						TakesFile: true,
					},
				},
				Action: importStations,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx *cli.Context) error {
	log := slog.Default()

	runCtx, cancel := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stationStore, err := stations.LoadFile(ctx.String("stations"))
	if err != nil {
		return err
	}
	praesidien, reviere := stationStore.Counts()
	log.Info("Stations loaded", "praesidien", praesidien, "reviere", reviere)

	geocodeCache := cache.NewTTL[string, []geomodel.Candidate](geocodeCacheTTL)
	snapshotPath := ctx.String("geocode-snapshot")
	if snapshotPath != "" {
		if err := cache.LoadSnapshot(geocodeCache, snapshotPath); err != nil {
			log.Warn("could not load geocode snapshot", "path", snapshotPath, "error", err)
		} else {
			log.Info("Geocode snapshot loaded", "entries", geocodeCache.Len())
		}
	}

	userAgent := ctx.String("user-agent")
	geocoder := geocoding.NewAggregator(
		[]geocoding.Provider{
			geocoding.NewNominatim(ctx.String("nominatim-url"), userAgent, geodist.BadenWuerttemberg),
			geocoding.NewPhoton(ctx.String("photon-url"), geodist.BadenWuerttemberg),
		},
		geocodeCache,
		ctx.String("region"),
		log,
	)

	osrmEndpoints := ctx.StringSlice("osrm-url")
	if len(osrmEndpoints) == 0 {
		osrmEndpoints = []string{"https://router.project-osrm.org"}
	}

	routeCache := cache.NewBounded[string, geomodel.RouteResult](routeCacheTTL, routeCacheSize, routeEvictBatch)
	routes := routing.NewAggregator(
		[]routing.Provider{
			routing.NewOSRM(osrmEndpoints, userAgent),
			routing.NewValhalla(ctx.String("valhalla-url")),
		},
		routeCache,
		log,
	)

	sessions := wizard.NewStore(sessionTTL)

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return server.Run(groupCtx, ctx.String("listen"), server.Deps{
			Geocoder: geocoder,
			Routes:   routes,
			Stations: stationStore,
			Sessions: sessions,
		})
	})
	group.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case now := <-ticker.C:
				if removed := sessions.Sweep(now); removed > 0 {
					log.Info("Swept idle wizard sessions", "removed", removed)
				}
			}
		}
	})

	err = group.Wait()

	if snapshotPath != "" {
		if saveErr := cache.SaveSnapshot(geocodeCache, snapshotPath); saveErr != nil {
			log.Warn("could not save geocode snapshot", "path", snapshotPath, "error", saveErr)
		}
	}

	return err
}
