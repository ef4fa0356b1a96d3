package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"
)

// Peer is a single broadcast destination: another replica hosting the same
// document set.
type Peer struct {
	ID      string
	Address string
}

// PeerLister supplies the current fan-out membership. The replica cluster's
// membership view satisfies this with its own node list.
type PeerLister interface {
	Peers() []Peer
}

// HTTPPublisher fans an envelope out to every peer over HTTP, with
// exponential backoff retries per peer — the same thundering-herd
// mitigation the teacher's inter-node replicator uses, generalized from a
// write-quorum fan-out to a best-effort broadcast: every peer gets the
// envelope, and a peer that never acks does not stop delivery to the
// others. The local apply has already happened by the time Publish is
// called, so a returned error reports failed delivery, not a failed op.
type HTTPPublisher struct {
	selfID  string
	peers   PeerLister
	client  *http.Client
	retries int
}

// NewHTTPPublisher builds a publisher that POSTs to each peer's /broadcast
// endpoint.
func NewHTTPPublisher(selfID string, peers PeerLister) *HTTPPublisher {
	return &HTTPPublisher{
		selfID:  selfID,
		peers:   peers,
		client:  &http.Client{Timeout: 5 * time.Second},
		retries: 3,
	}
}

// Publish sends env to every peer concurrently and waits for all attempts to
// finish. A peer failure does not prevent delivery to the others; the first
// peer error (after that peer's retries) is returned, or nil if every peer
// accepted the envelope.
func (p *HTTPPublisher) Publish(ctx context.Context, env Envelope) error {
	peers := p.peers.Peers()

	var wg sync.WaitGroup
	errs := make(chan error, len(peers))

	for _, peer := range peers {
		if peer.ID == p.selfID {
			continue
		}
		wg.Add(1)
		go func(peer Peer) {
			defer wg.Done()
			errs <- p.sendWithRetry(ctx, peer, env)
		}(peer)
	}

	wg.Wait()
	close(errs)

	var firstErr error
	for err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *HTTPPublisher) sendWithRetry(ctx context.Context, peer Peer, env Envelope) error {
	for attempt := 0; attempt < p.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))*100) * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := p.doPost(ctx, peer, env); err == nil {
			return nil
		} else if attempt == p.retries-1 {
			return fmt.Errorf("broadcast to %s after %d attempts: %w", peer.ID, p.retries, err)
		}
	}
	return nil
}

func (p *HTTPPublisher) doPost(ctx context.Context, peer Peer, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/broadcast", peer.Address)
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("peer returned HTTP %d", resp.StatusCode)
	}
	return nil
}
