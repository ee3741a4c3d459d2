// Package gardenqueue is an offline-first job queue for garden
// stewardship submissions. User actions taken without connectivity are
// persisted durably, replayed through a smart-account client when the
// network returns, and surfaced to the UI immediately through cached
// projections and deterministic placeholder transaction hashes.
//
// The queue supports multiple store backends:
// - Memory (tests and ephemeral deployments)
// - Redis
// - Postgres
//
// # Example
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/greengoods/gardenqueue/core"
//		"github.com/greengoods/gardenqueue/events"
//		"github.com/greengoods/gardenqueue/processors"
//		"github.com/greengoods/gardenqueue/registry"
//		"github.com/greengoods/gardenqueue/retry"
//		"github.com/greengoods/gardenqueue/store/redis"
//	)
//
//	func main() {
//		// Create components
//		store := redis.NewStore(redis.DefaultOptions())
//		reg := registry.NewRegistry()
//		reg.Register(processors.NewWorkProcessor(nil))
//		reg.Register(processors.NewApprovalProcessor())
//
//		// Create engine
//		engine := core.NewEngine(
//			store,
//			reg,
//			retry.NewPolicy(retry.DefaultConfig()),
//			events.NewBus(),
//			client, // your chain.SmartAccountClient
//			core.WithChainID(42161),
//		)
//
//		ctx := context.Background()
//		if err := engine.Start(ctx); err != nil {
//			panic(err)
//		}
//		defer engine.Stop()
//	}
//
// # Adding jobs offline
//
// AddJob succeeds regardless of connectivity; the job is persisted and
// announced on the event bus. Media can be attached as binary blobs and
// referenced from the payload as att://<name>; they are uploaded and
// rewritten to public URLs when the job is flushed.
//
//	added, err := engine.AddJob(ctx, job.Job{
//		Kind:    job.KindWork,
//		Payload: payload,
//		Sender:  gardener,
//	})
//
// Use OfflineTxHash to reference a queued job before it has a real
// transaction hash; approvals that name such a placeholder are held
// back transiently until the underlying work syncs.
//
// # Assembled daemon
//
// New builds the whole stack (store, processors, retry policy, network
// monitor, circuit breaker, optional AMQP event mirror) from
// environment configuration:
//
//	cfg := config.Load()
//	q, err := gardenqueue.New(ctx, cfg, client)
//	if err != nil {
//		panic(err)
//	}
//	if err := q.Work(ctx); err != nil {
//		panic(err)
//	}
package gardenqueue
