package generation

import (
	"context"
	"math/rand"
	"time"

	"lookbook/server/internal/apperr"
	"lookbook/server/internal/files"
)

// Backend produces the result artifact for one generation request. The
// simulated implementation below stands in for a real inference service; a
// real model client can replace it without touching the service control flow.
type Backend interface {
	// Generate takes the stored upload name and returns the stored result
	// name, or an overloaded error when the backend rejects the request.
	Generate(ctx context.Context, ownerID uint, uploadName string) (string, error)
}

// Simulated models an unreliable downstream: a fixed probability of
// "model overloaded", a uniform 1-2s processing delay, and a result that is
// just a copy of the source image.
type Simulated struct {
	ns               *files.Namespace
	faultProbability float64
	minDelay         time.Duration
	maxDelay         time.Duration

	randFloat func() float64
	sleep     func(context.Context, time.Duration) error
}

func NewSimulated(ns *files.Namespace, faultProbability float64, minDelay, maxDelay time.Duration) *Simulated {
	return &Simulated{
		ns:               ns,
		faultProbability: faultProbability,
		minDelay:         minDelay,
		maxDelay:         maxDelay,
		randFloat:        rand.Float64,
		sleep:            sleepCancelable,
	}
}

func (b *Simulated) Generate(ctx context.Context, ownerID uint, uploadName string) (string, error) {
	if b.randFloat() < b.faultProbability {
		return "", apperr.Overloaded("Model overloaded")
	}

	delay := b.minDelay
	if b.maxDelay > b.minDelay {
		delay += time.Duration(b.randFloat() * float64(b.maxDelay-b.minDelay))
	}
	if err := b.sleep(ctx, delay); err != nil {
		return "", err
	}

	return b.ns.Duplicate(ownerID, uploadName, files.ResultName(uploadName))
}

func sleepCancelable(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
