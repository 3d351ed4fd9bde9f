// Package notify carries mutation news to users over two channels: a durable
// per-user ledger read back through the REST API, and a best-effort live push
// to currently connected websocket sessions. The two never block each other,
// and neither may fail the mutation that produced the trigger.
package notify
