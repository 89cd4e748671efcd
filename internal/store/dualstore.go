// Package store реализует двухуровневое хранилище: локальный Redis-кэш,
// удалённая авторитетная запись в PostgreSQL и поток изменений через RabbitMQ.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/streadway/amqp"

	"github.com/nadimanwar794-eng/nst-core/internal/lib/sl"
	"github.com/nadimanwar794-eng/nst-core/internal/metrics"
	"github.com/nadimanwar794-eng/nst-core/internal/rabbitmq"
)

// Local — локальное хранилище (см. cache.Cache).
type Local interface {
	GetRaw(ctx context.Context, key string) ([]byte, bool, error)
	SetRaw(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Remote — удалённое авторитетное хранилище (см. storage.Storage).
type Remote interface {
	UpsertRecord(ctx context.Context, key string, value []byte) error
	GetRecord(ctx context.Context, key string) ([]byte, error)
}

// DualStore связывает локальное и удалённое хранилища.
// Запись сначала попадает в локальный кэш синхронно, затем асинхронно
// доставляется в удалённое хранилище и публикуется в поток изменений.
// Ошибка удалённой записи логируется и считается, но не возвращается вызывающему.
type DualStore struct {
	log     *slog.Logger
	local   Local
	remote  Remote
	channel *amqp.Channel
	metrics *metrics.Metrics

	// remoteTimeout ограничивает фоновую доставку в удалённое хранилище.
	remoteTimeout time.Duration
}

func New(log *slog.Logger, local Local, remote Remote, ch *amqp.Channel, m *metrics.Metrics) *DualStore {
	return &DualStore{
		log:           log,
		local:         local,
		remote:        remote,
		channel:       ch,
		metrics:       m,
		remoteTimeout: 10 * time.Second,
	}
}

// Write сохраняет значение локально и инициирует фоновую доставку
// в удалённое хранилище. Возврат без ошибки означает, что локальная
// запись выполнена; удалённая доставка — best effort.
func (d *DualStore) Write(ctx context.Context, key string, value any) error {
	const op = "store.Write"

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := d.local.SetRaw(ctx, key, data, 0); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go d.propagate(key, data)

	return nil
}

// WriteLocal сохраняет значение только локально, без удалённой доставки
// и без публикации. Используется для высокочастотных счётчиков.
func (d *DualStore) WriteLocal(ctx context.Context, key string, value any) error {
	const op = "store.WriteLocal"

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := d.local.SetRaw(ctx, key, data, 0); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *DualStore) propagate(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), d.remoteTimeout)
	defer cancel()

	if err := d.remote.UpsertRecord(ctx, key, data); err != nil {
		d.metrics.SyncWriteFailures.Inc()
		d.log.Error("remote upsert failed", slog.String("key", key), sl.Err(err))
		return
	}
	if d.channel == nil {
		return
	}
	if err := rabbitmq.Publish(d.channel, RoutingKey(key), data); err != nil {
		d.log.Error("publish change event failed", slog.String("key", key), sl.Err(err))
	}
}

// Read читает значение: сначала локальный кэш, при промахе — удалённое
// хранилище. Удалённое значение не записывается обратно в кэш.
func (d *DualStore) Read(ctx context.Context, key string, dest any) (bool, error) {
	const op = "store.Read"

	data, found, err := d.local.GetRaw(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		data, err = d.remote.GetRecord(ctx, key)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		if data == nil {
			return false, nil
		}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// ReadRaw — как Read, но возвращает сырые байты.
func (d *DualStore) ReadRaw(ctx context.Context, key string) ([]byte, bool, error) {
	const op = "store.ReadRaw"

	data, found, err := d.local.GetRaw(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		return data, true, nil
	}
	data, err = d.remote.GetRecord(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// Delete удаляет значение из локального кэша. Удалённая запись
// остаётся как исторический снимок.
func (d *DualStore) Delete(ctx context.Context, key string) error {
	const op = "store.Delete"

	if err := d.local.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Subscribe подписывается на поток изменений ключа. Если на момент
// подписки значение уже есть (локально либо удалённо), onChange вызывается
// с ним один раз до событий из потока. Возвращённая функция снимает подписку.
func (d *DualStore) Subscribe(ctx context.Context, key string, onChange func([]byte)) (context.CancelFunc, error) {
	const op = "store.Subscribe"

	if d.channel == nil {
		return nil, fmt.Errorf("%s: no channel", op)
	}

	subCtx, cancel := context.WithCancel(ctx)

	_, err := rabbitmq.ConsumeKey(subCtx, d.channel, RoutingKey(key), func(body []byte) error {
		onChange(body)
		return nil
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if data, found, err := d.ReadRaw(ctx, key); err != nil {
		d.log.Warn("initial read for subscription failed", slog.String("key", key), sl.Err(err))
	} else if found {
		onChange(data)
	}

	return cancel, nil
}

// RoutingKey переводит логический ключ в routing key AMQP:
// двоеточия заменяются точками.
func RoutingKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}
