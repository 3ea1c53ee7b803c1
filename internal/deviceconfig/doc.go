// Package deviceconfig provides an HTTP client for the config server that
// relays configuration uploads, restores and live status queries to nodes.
//
// # Operations
//
//   - Upload: POST /upload with the serialized document (single attempt)
//   - Restore: GET /restore/{ip} returns the node's stored document
//   - Status: GET /status/{ip} returns live instance state
//   - FetchMetadata / FetchTargets: GET /metadata and GET /targets
//
// GET requests are retried with exponential backoff when the failure is
// retryable. Uploads are not retried: the caller keeps its document and
// decides whether to resubmit.
//
// # Usage Example
//
//	client := deviceconfig.NewClient("http://10.0.0.2:8123")
//	client.NodeIP = "192.168.1.40"
//
//	if err := client.Upload(ctx, payload); err != nil {
//	    if deviceconfig.IsConflictError(err) {
//	        // another write is in progress on the node
//	    }
//	    fmt.Println(deviceconfig.GetTroubleshootingHint(err))
//	}
//
// # Error Handling
//
// All failures are *DeviceError values. The status code decides the type:
//   - 409: ErrTypeConflict, the node reported a filesystem conflict
//   - 404: ErrTypeUnreachable, the server could not reach the node
//   - 401: ErrTypeAuth
//   - anything else: ErrTypeHTTP with the server's raw message
//
// Transport failures are classified by ClassifyNetworkError into timeout,
// connection refused, DNS and unreachable subtypes.
//
// # Live Status
//
// StatusWatcher dials /ws/status/{ip} and delivers each frame as a
// *NodeStatus until the context is cancelled.
package deviceconfig
