package gossip

import (
	"context"
	"encoding/json"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/swapslot/escrowd/pkg/node"
)

// Topic carries attested settlement events. Downstream consumers verify
// the BLS attestation before acting on an event, so the transport itself
// needs no trust.
const Topic = "escrowd-settlements"

// Config for the gossip fanout.
type Config struct {
	ListenAddr string   // multiaddr to listen on; empty = ephemeral
	Bootstrap  []string // multiaddrs of peers to dial at startup
	Logger     *zap.SugaredLogger
}

// Net publishes settlement events on a GossipSub topic and lets downstream
// consumers subscribe with attestation verification.
type Net struct {
	h     host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	log   *zap.SugaredLogger
}

// New builds the libp2p host, joins the settlement topic, and dials
// bootstrap peers.
func New(ctx context.Context, cfg Config) (*Net, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}
	topic, err := ps.Join(Topic)
	if err != nil {
		h.Close()
		return nil, err
	}

	n := &Net{h: h, ps: ps, topic: topic, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Infow("gossip_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return n, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

// Host exposes the underlying libp2p host (for address introspection).
func (n *Net) Host() host.Host { return n.h }

// Publish broadcasts one settlement event.
func (n *Net) Publish(ctx context.Context, e *node.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.topic.Publish(ctx, data)
}

// Subscribe delivers verified settlement events to handler until ctx ends.
// Events whose attestation does not verify under attesterKey are dropped;
// with a nil attesterKey the event's embedded key is checked instead.
func (n *Net) Subscribe(ctx context.Context, attesterKey []byte, handler func(*node.Event)) error {
	sub, err := n.topic.Subscribe()
	if err != nil {
		return err
	}
	go func() {
		defer sub.Cancel()
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			var e node.Event
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				continue
			}
			if attesterKey != nil && string(e.AttesterKey) != string(attesterKey) {
				if n.log != nil {
					n.log.Warnw("event_attester_unknown", "event", e.ID)
				}
				continue
			}
			if !e.Verify() {
				if n.log != nil {
					n.log.Warnw("event_attestation_invalid", "event", e.ID)
				}
				continue
			}
			handler(&e)
		}
	}()
	return nil
}

// Close shuts down the libp2p host.
func (n *Net) Close() error {
	return n.h.Close()
}
