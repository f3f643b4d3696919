package observability

// Metric instrument names
const (
	WagersPlacedTotal     = "crashd.wagers.placed.total"
	WagersCashedOutTotal  = "crashd.wagers.cashed_out.total"
	WagersLostTotal       = "crashd.wagers.lost.total"
	RoundsTotal           = "crashd.rounds.total"
	WSConnectionsActive   = "crashd.ws.connections.active"
	BroadcastDropsTotal   = "crashd.ws.broadcast_drops.total"
	DatabaseQueriesTotal  = "crashd.db.queries.total"
	DatabaseQueryDuration = "crashd.db.query.duration"
)

// Metric attribute keys
const (
	LabelRepository = "repository"
	LabelMethod     = "method"
	LabelPhase      = "phase"
	LabelSession    = "session_kind"
)
