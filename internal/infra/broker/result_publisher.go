package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

const resultSubjectSuffix = "finished"

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep results
	Replicas        int
	DuplicateWindow time.Duration // Window for duplicate detection on run id
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "QUIZ_RESULTS",
		SubjectPrefix:   "quiz.results",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// ResultPublisher publishes finished runs to JetStream so XP and badge
// consumers can pick them up.
type ResultPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewResultPublisher(ctx context.Context, cfg JetStreamConfig) (*ResultPublisher, error) {
	opts := []nats.Option{
		nats.Name("quizroom-service"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &ResultPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *ResultPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Final leaderboards of multiplayer quiz runs",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}
	if _, err := p.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().Str("stream", p.config.StreamName).Msg("JetStream stream ready")
	return nil
}

// Subject is where finished runs are published.
func (p *ResultPublisher) Subject() string {
	return ResultSubject(p.config.SubjectPrefix)
}

// Publish sends the result with the run id as message id, so a retried
// publish inside the duplicate window is dropped by the server.
func (p *ResultPublisher) Publish(ctx context.Context, result domain.RoomResult) error {
	_, err := p.publish(ctx, result)
	return err
}

func (p *ResultPublisher) publish(ctx context.Context, result domain.RoomResult) (*jetstream.PubAck, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	subject := p.Subject()
	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Room-ID": []string{result.RoomID},
			"Run-ID":  []string{result.RunID},
			"Reason":  []string{string(result.Reason)},
		},
	},
		jetstream.WithMsgID(result.RunID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return nil, fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Info().
		Str("subject", subject).
		Str("run_id", result.RunID).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published quiz result")
	return ack, nil
}

func (p *ResultPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// ResultSubject builds the finished-run subject for a prefix.
func ResultSubject(prefix string) string {
	return prefix + "." + resultSubjectSuffix
}
