// Package priceoracle converts native-currency amounts into USD using an
// external price feed.
//
// A Feed reports the latest round the way an aggregator contract does: an
// integer answer with a feed-defined number of decimals. The Adapter reads the
// feed fresh on every conversion, validates the round, aligns the price to 18
// decimals and multiplies with 256-bit integer arithmetic.
package priceoracle

import (
	"context"
	"errors"
	"math/big"
	"time"
)

var (
	// ErrOracleUnavailable is returned when the feed cannot be read or its
	// answer cannot be used.
	ErrOracleUnavailable = errors.New("priceoracle: oracle unavailable")

	// ErrConversionOverflow is returned when the USD value does not fit in 256 bits.
	ErrConversionOverflow = errors.New("priceoracle: conversion overflows 256 bits")
)

// Price is one round reported by a Feed.
type Price struct {
	RoundID         uint64    `json:"round_id"`
	Answer          *big.Int  `json:"answer"`
	Decimals        uint8     `json:"decimals"`
	UpdatedAt       time.Time `json:"updated_at"`
	AnsweredInRound uint64    `json:"answered_in_round"`
}

// Feed is an external price source.
type Feed interface {
	// LatestPrice returns the most recent round.
	LatestPrice(ctx context.Context) (Price, error)

	// Description names the pair, e.g. "ETH / USD".
	Description() string
}

// FeedFunc adapts a function to the Feed interface.
type FeedFunc func(ctx context.Context) (Price, error)

// LatestPrice calls f(ctx).
func (f FeedFunc) LatestPrice(ctx context.Context) (Price, error) { return f(ctx) }

// Description implements Feed.
func (f FeedFunc) Description() string { return "func" }
