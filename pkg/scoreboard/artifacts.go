package scoreboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PublishArtifact stores a rendered artifact payload under a fresh reference
// and announces it on the artifact events channel. The chat layer listening on
// that channel posts the payload; the returned reference is what a later
// UnpublishArtifact call retires.
func (c *Client) PublishArtifact(ctx context.Context, channel string, payload []byte) (string, error) {
	if channel == "" {
		return "", fmt.Errorf("channel cannot be empty")
	}

	ref := uuid.New().String()
	if err := c.rdb.Set(ctx, ArtifactPayloadKey(c.instanceName, ref), payload, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to store artifact payload: %w", err)
	}

	if err := c.publishArtifactEvent(ctx, ArtifactEvent{Kind: ArtifactPublished, Channel: channel, Ref: ref}); err != nil {
		// The payload exists but nobody was told; drop it so the caller's retry
		// starts clean.
		c.rdb.Del(ctx, ArtifactPayloadKey(c.instanceName, ref))
		return "", err
	}
	return ref, nil
}

// UnpublishArtifact removes an artifact payload and announces its retirement.
// Unpublishing an unknown reference is not an error.
func (c *Client) UnpublishArtifact(ctx context.Context, channel, ref string) error {
	if err := c.rdb.Del(ctx, ArtifactPayloadKey(c.instanceName, ref)).Err(); err != nil {
		return fmt.Errorf("failed to delete artifact payload %s: %w", ref, err)
	}
	return c.publishArtifactEvent(ctx, ArtifactEvent{Kind: ArtifactRetired, Channel: channel, Ref: ref})
}

// GetArtifactPayload returns the bytes of a published artifact.
// Returns (nil, redis.Nil) if the reference is unknown or retired.
func (c *Client) GetArtifactPayload(ctx context.Context, ref string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, ArtifactPayloadKey(c.instanceName, ref)).Bytes()
	if err != nil {
		if IsNotFound(err) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read artifact payload %s: %w", ref, err)
	}
	return data, nil
}

// GetCurrentArtifact returns the pointer to the artifact currently published on a channel.
// Returns (nil, redis.Nil) if nothing has been published there.
func (c *Client) GetCurrentArtifact(ctx context.Context, channel string) (*ArtifactPointer, error) {
	raw, err := c.rdb.HGetAll(ctx, ArtifactKey(c.instanceName, channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read current artifact for %s: %w", channel, err)
	}
	if len(raw) == 0 {
		return nil, redis.Nil
	}

	ms, err := strconv.ParseInt(raw["published_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid published_at_ms for %s: %w", channel, err)
	}

	return &ArtifactPointer{
		Channel:      channel,
		Fingerprint:  raw["fingerprint"],
		PayloadRef:   raw["payload_ref"],
		PublishedRef: raw["published_ref"],
		PublishedAt:  msToTime(ms),
	}, nil
}

// SetCurrentArtifact replaces the current-artifact pointer of a channel.
func (c *Client) SetCurrentArtifact(ctx context.Context, p *ArtifactPointer) error {
	if p.Channel == "" {
		return fmt.Errorf("channel cannot be empty")
	}
	hash := map[string]interface{}{
		"fingerprint":     p.Fingerprint,
		"payload_ref":     p.PayloadRef,
		"published_ref":   p.PublishedRef,
		"published_at_ms": timeToMs(p.PublishedAt),
	}
	if err := c.rdb.HSet(ctx, ArtifactKey(c.instanceName, p.Channel), hash).Err(); err != nil {
		return fmt.Errorf("failed to write current artifact for %s: %w", p.Channel, err)
	}
	return nil
}

func (c *Client) publishArtifactEvent(ctx context.Context, event ArtifactEvent) error {
	event.AtMs = time.Now().UnixMilli()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact event: %w", err)
	}
	if err := c.rdb.Publish(ctx, ArtifactEventsChannel(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to publish artifact event: %w", err)
	}
	return nil
}
