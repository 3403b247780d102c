// Package pollagent runs named, schema-validated tools on behalf of a remote coordinator.
//
// # Overview
//
// A Client collects tools and, on Listen, starts one Agent. The Agent registers the machine and its
// tools (name, description, JSON Schema, config) with the coordinator, then loops:
// long-poll for pending jobs addressed to its tools → run every job of the batch concurrently →
// report each result → sleep the retry interval → poll again, until Stop.
//
// Per job: unknown functions are dropped (another machine may own them); input that is not a JSON
// object is rejected with an InputError; input failing the tool schema is rejected with a
// ValidationError; otherwise the handler runs and its value (or serialized error) is reported.
// Transport failures never stop the loop: they are counted, logged and retried.
//
// # Schemas
//
// Tools declare input with one of two Schema kinds:
//
//   - TypedSchema[T], reflected from a Go struct (NewTool). Handlers receive a validated T.
//   - RawSchema, a JSON Schema document sent unchanged (NewDynamicTool). Handlers receive the object,
//     with numbers as json.Number.
//
// # Example
//
//	type Args struct {
//	    City string `json:"city" description:"City name"`
//	}
//	tool, err := pollagent.NewTool("weather", "Current weather", func(ctx context.Context, a Args) (float64, error) {
//	    return 22.5, nil
//	})
//	if err != nil { ... }
//	client, err := pollagent.NewClient(os.Getenv("POLLAGENT_API_SECRET"))
//	if err != nil { ... }
//	if err := client.Register(tool); err != nil { ... }
//	if err := client.Listen(ctx); err != nil { ... }
//	defer client.Unlisten(context.Background())
package pollagent
