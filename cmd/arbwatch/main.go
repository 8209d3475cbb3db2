// arbwatch tails the bot's Redis feed and prints events to stdout, one
// JSON line per event. Useful for eyeballing a running bot without
// touching the operator API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/drongunkam-dotcom/arb-bot/internal/config"
	"github.com/drongunkam-dotcom/arb-bot/internal/feed"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	only := flag.String("only", "", "comma-separated event types to show (opportunity,trade,metrics,status)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail("config: %v", err)
	}
	if !cfg.Redis.Enabled {
		fail("redis feed is disabled in config")
	}

	channels := pickChannels(*only)
	if len(channels) == 0 {
		fail("no known event types in -only=%q", *only)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, channels...)
	defer sub.Close()

	fmt.Fprintf(os.Stderr, "subscribed to %s on %s\n", strings.Join(channels, ", "), cfg.Redis.Addr)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Println(msg.Payload)
		}
	}
}

func pickChannels(only string) []string {
	all := map[string]string{
		string(feed.EventOpportunity): feed.ChannelOpportunity,
		string(feed.EventTrade):       feed.ChannelTrade,
		string(feed.EventMetrics):     feed.ChannelMetrics,
		string(feed.EventStatus):      feed.ChannelStatus,
	}
	if only == "" {
		return []string{feed.ChannelOpportunity, feed.ChannelTrade, feed.ChannelMetrics, feed.ChannelStatus}
	}
	var out []string
	for _, t := range strings.Split(only, ",") {
		if ch, ok := all[strings.TrimSpace(t)]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
