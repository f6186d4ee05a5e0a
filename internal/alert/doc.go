// Package alert provides the business boundary for waste-pickup alerts.
// It defines the domain model, the lifecycle state machine, the Store
// interface (persistence only) and the Service that enforces claim,
// transition, rejection and review rules on top of it.
package alert
