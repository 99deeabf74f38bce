// Package tsdispatch is an in-process asynchronous event dispatch engine
// for a time series database host.
//
// Callers on the ingest and search paths enqueue typed events into a
// fixed-capacity ring buffer and return immediately. A single drain loop
// takes committed events in sequence order and fans each one out to every
// registered consumer whose subscription mask includes the event kind.
//
// Architecture:
//   - Kinds form a closed registry; each has a single bit flag and a set of
//     audiences (search, publish, rpc). A consumer's Mask is the OR of the
//     flags it wants.
//   - The Engine owns the ring buffer (package ring), the wait strategy
//     (package wait) and the consumer list.
//   - Adapters (package adapter) translate host callbacks into claims,
//     fill the slot and commit. Search queries carry a deferred result that
//     the answering consumer completes.
//   - Consumers configured by name are built from factories registered with
//     RegisterConsumer (see the sink packages).
//
// Basic example:
//
//	host := tsdispatch.MapHost{
//	    tsdispatch.KeyBufferSize:   "4096",
//	    tsdispatch.KeyWaitStrategy: "Sleep",
//	}
//	engine, err := tsdispatch.New(host)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Shutdown(ctx)
//
//	engine.Register(tsdispatch.NewConsumer("printer",
//	    tsdispatch.MaskOf(tsdispatch.KindDataPointLong),
//	    func(ctx context.Context, ev *tsdispatch.Event) error {
//	        p := ev.DataPoint()
//	        fmt.Println(p.Metric, p.Timestamp, p.Long)
//	        return nil
//	    }))
//
//	pub := adapter.NewPublish(engine)
//	pub.PublishDataPoint("sys.cpu.user", time.Now().Unix(), 42, tags, tsuid)
//
// Consumers run on the drain goroutine. A consumer that returns an error
// or panics is logged and counted as failed; other consumers and later
// events are unaffected and nothing is retried. Events are not durable.
package tsdispatch
