// Package models defines the persistent entities of the royalty analytics service.
//
// Catalog entities:
//   - [Artist] : the account that owns every other record, with profile fields and an API token
//   - [Platform] : a streaming or download store (Spotify, Apple Music, ...), shared by all artists
//   - [Album] and [Track] : an artist's releases, unique by title/name per artist
//
// Revenue entities:
//   - [Upload] : one imported report with running row counters and a status
//   - [RoyaltyStatement] : one normalized report line, deduplicated by [StatementHash]
//
// Insight entities:
//   - [Insight] : a scalar metric (popularity, rank, days since release) observed for a track on a platform
//
// All entities implement [Model]. Money amounts use [decimal.Decimal] and are persisted as integer
// ten-thousandths (see [RevenueToE4]).
package models
