// Command shelf-companion tracks which books sit on the shelf sensors,
// derives the companion's mood, and publishes telemetry over MQTT and
// websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/shelf-companion/internal/clock"
	"github.com/sweeney/shelf-companion/internal/gpio"
	"github.com/sweeney/shelf-companion/internal/logic"
	"github.com/sweeney/shelf-companion/internal/mqtt"
	"github.com/sweeney/shelf-companion/internal/telemetry"
	"github.com/sweeney/shelf-companion/internal/web"
)

// defaultSlotNames labels the five sense channels left to right.
var defaultSlotNames = [logic.NumSlots]string{"math", "science", "english", "history", "reading"}

func main() {
	poll := flag.Duration("poll", 50*time.Millisecond, "sensor polling interval")
	debounce := flag.Duration("debounce", 50*time.Millisecond, "slot debounce duration")
	touchDebounce := flag.Duration("touch-debounce", 20*time.Millisecond, "touch debounce duration")
	longPress := flag.Duration("long-press", 2*time.Second, "long-press threshold")
	bootCalm := flag.Duration("boot-calm", 5*time.Minute, "calm grace period after boot")
	calmHold := flag.Duration("calm-hold", 10*time.Minute, "calm window after all books are placed")
	degradeEvery := flag.Duration("degrade-every", 10*time.Minute, "interval between degrade stages")
	publish := flag.Duration("publish", 2*time.Second, "telemetry publish interval")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	httpAddr := flag.String("http", ":8080", "HTTP/websocket address (empty to disable)")
	slotPins := flag.String("slot-pins", pinList(gpio.DefaultSlotPins), "comma-separated BCM pins for the 5 slots")
	touchPin := flag.Int("touch-pin", gpio.DefaultTouchPin, "BCM pin for the touch pad")
	slotNames := flag.String("slot-names", strings.Join(defaultSlotNames[:], ","), "comma-separated slot names")
	printState := flag.Bool("print-state", false, "print current sensor state and exit")

	flag.Parse()

	pins, err := parsePins(*slotPins)
	if err != nil {
		log.Fatalf("fatal: -slot-pins: %v", err)
	}
	names, err := parseNames(*slotNames)
	if err != nil {
		log.Fatalf("fatal: -slot-names: %v", err)
	}

	cfg := loopConfig{
		Debounce:      *debounce,
		TouchDebounce: *touchDebounce,
		LongPress:     *longPress,
		Emotion: logic.EmotionConfig{
			BootCalm:     *bootCalm,
			CalmHold:     *calmHold,
			DegradeEvery: *degradeEvery,
			MaxStage:     5,
		},
		PublishEvery: *publish,
		SlotNames:    names,
	}

	if err := run(cfg, *poll, *broker, *httpAddr, pins, *touchPin, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loopConfig carries everything the scheduling loop needs.
type loopConfig struct {
	Debounce      time.Duration
	TouchDebounce time.Duration
	LongPress     time.Duration
	Emotion       logic.EmotionConfig
	PublishEvery  time.Duration
	SlotNames     [logic.NumSlots]string
}

// syncableClock is what the loop needs from the clock: reading plus the
// ability to apply a network-supplied epoch.
type syncableClock interface {
	clock.Source
	Sync(epoch uint32) error
}

func run(cfg loopConfig, poll time.Duration, broker, httpAddr string, pins [logic.NumSlots]int, touchPin int, printState bool) error {
	reader, err := gpio.NewRealReader(pins, touchPin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if printState {
		sample, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		for i, present := range sample.Slots {
			fmt.Printf("%s: %s\n", cfg.SlotNames[i], presenceString(present))
		}
		fmt.Printf("touch: %v\n", sample.Touch)
		return nil
	}

	clk := clock.NewWall()
	publisher := mqtt.NewRealPublisher(broker)
	defer publisher.Close()

	tracker := telemetry.NewTracker(time.Now(), telemetry.Config{
		PollMs:     poll.Milliseconds(),
		DebounceMs: cfg.Debounce.Milliseconds(),
		PublishMs:  cfg.PublishEvery.Milliseconds(),
		BootCalmMs: cfg.Emotion.BootCalm.Milliseconds(),
		CalmHoldMs: cfg.Emotion.CalmHold.Milliseconds(),
		DegradeMs:  cfg.Emotion.DegradeEvery.Milliseconds(),
		Broker:     broker,
		HTTPAddr:   httpAddr,
	})

	// Publish startup event with a full snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: telemetry.FormatLifecycle(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	hub := web.NewHub()
	go hub.Run()

	syncCh := make(chan web.SyncRequest, 4)

	if httpAddr != "" {
		srv := web.New(httpAddr, tracker, hub, syncCh)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", httpAddr)
	}

	log.Printf("started: poll=%v debounce=%v broker=%s publish=%v clock_valid=%v",
		poll, cfg.Debounce, broker, cfg.PublishEvery, clk.Valid())

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(cfg, reader, publisher, publisher, tracker, hub, clk, syncCh, time.Now, ticker.C, sigCh)
}

// runLoop is the single scheduling loop. It owns all core state; network
// input reaches it only through syncCh, drained at the top of each cycle.
func runLoop(cfg loopConfig, reader gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *telemetry.Tracker, hub *web.Hub, clk syncableClock, syncCh <-chan web.SyncRequest, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	presence := logic.NewPresenceTracker(cfg.SlotNames, cfg.Debounce)
	touch := logic.NewTouchClassifier(cfg.TouchDebounce, cfg.LongPress)
	engine := logic.NewEmotionEngine(cfg.Emotion, startTime)

	var lastPublish time.Time

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = telemetry.FormatLifecycle(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()

			// Drain queued clock-sync requests before touching any state,
			// so snapshot assembly never races a network-driven mutation.
			drainSync(syncCh, clk)

			sample, err := reader.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}

			epoch := clk.Now()
			events := presence.Process(logic.SlotInput{Raw: sample.Slots, Time: t, Epoch: epoch})
			events = append(events, touch.Process(sample.Touch, t)...)
			events = append(events, engine.Tick(t, events)...)

			mood := engine.Mood(t, presence.PresenceCount())
			forcePublish := false
			for _, ev := range events {
				log.Printf("event: %s slot=%q mood=%s placed=%d", ev.Type, ev.SlotName, mood, presence.PresenceCount())
				msg := mqtt.Message{Event: ev, Mood: mood, BooksPlaced: presence.PresenceCount()}
				if err := publisher.Publish(msg); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
				if ev.Type == logic.EventQuickStatus || ev.Type == logic.EventDetailedStats {
					forcePublish = true
				}
			}

			tracker.Update(telemetry.State{
				Phase:         engine.Phase(),
				Stage:         engine.Stage(t),
				Mood:          mood,
				PresenceCount: presence.PresenceCount(),
				Slots:         presence.Views(epoch),
				TotalLive:     presence.TotalLive(epoch),
				Epoch:         epoch,
				ClockValid:    clk.Valid(),
			})
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if forcePublish || lastPublish.IsZero() || t.Sub(lastPublish) >= cfg.PublishEvery {
				lastPublish = t
				payload := telemetry.FormatJSON(tracker.Snapshot())
				if hub != nil && hub.ClientCount() > 0 {
					hub.Broadcast(payload)
				}
				if err := publisher.PublishTelemetry(payload); err != nil {
					log.Printf("telemetry publish error: %v", err)
				}
			}
		}
	}
}

// drainSync applies all queued clock-sync requests.
func drainSync(syncCh <-chan web.SyncRequest, clk syncableClock) {
	for {
		select {
		case req := <-syncCh:
			err := clk.Sync(req.Epoch)
			if err != nil {
				log.Printf("clock sync rejected: epoch=%d: %v", req.Epoch, err)
			} else {
				log.Printf("clock synced: epoch=%d", req.Epoch)
			}
			req.Reply <- err
		default:
			return
		}
	}
}

func parsePins(s string) ([logic.NumSlots]int, error) {
	var pins [logic.NumSlots]int
	parts := strings.Split(s, ",")
	if len(parts) != logic.NumSlots {
		return pins, fmt.Errorf("need %d pins, got %d", logic.NumSlots, len(parts))
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return pins, fmt.Errorf("pin %d: %w", i, err)
		}
		pins[i] = n
	}
	return pins, nil
}

func parseNames(s string) ([logic.NumSlots]string, error) {
	var names [logic.NumSlots]string
	parts := strings.Split(s, ",")
	if len(parts) != logic.NumSlots {
		return names, fmt.Errorf("need %d names, got %d", logic.NumSlots, len(parts))
	}
	for i, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			return names, fmt.Errorf("name %d is empty", i)
		}
		names[i] = name
	}
	return names, nil
}

func pinList(pins [logic.NumSlots]int) string {
	parts := make([]string, len(pins))
	for i, p := range pins {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func presenceString(present bool) string {
	if present {
		return "PRESENT"
	}
	return "ABSENT"
}
