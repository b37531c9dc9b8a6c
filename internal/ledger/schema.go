package ledger

// Schema DDL. Types are limited to those both sqlite and postgres accept.
const (
	createProjections = `CREATE TABLE IF NOT EXISTS projections (
    projection_id TEXT PRIMARY KEY,
    parameters TEXT NOT NULL,
    started_at TEXT NOT NULL
)`

	createPolygons = `CREATE TABLE IF NOT EXISTS polygons (
    projection_id TEXT NOT NULL,
    polygon_id TEXT NOT NULL,
    feature_id BIGINT NOT NULL,
    map_sheet TEXT NOT NULL,
    polygon_number BIGINT NOT NULL,
    district TEXT NOT NULL,
    reference_year INTEGER NOT NULL,
    recorded_at TEXT NOT NULL,
    PRIMARY KEY (projection_id, polygon_id),
    FOREIGN KEY (projection_id) REFERENCES projections(projection_id)
)`

	createStageResults = `CREATE TABLE IF NOT EXISTS stage_results (
    projection_id TEXT NOT NULL,
    polygon_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    stage TEXT NOT NULL,
    stratum TEXT NOT NULL,
    model TEXT NOT NULL,
    outcome TEXT NOT NULL,
    severity TEXT NOT NULL,
    code INTEGER NOT NULL,
    PRIMARY KEY (projection_id, polygon_id, seq)
)`

	createMessages = `CREATE TABLE IF NOT EXISTS messages (
    projection_id TEXT NOT NULL,
    polygon_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    severity TEXT NOT NULL,
    kind TEXT NOT NULL,
    stratum TEXT NOT NULL,
    text TEXT NOT NULL,
    PRIMARY KEY (projection_id, polygon_id, seq)
)`

	createYieldRows = `CREATE TABLE IF NOT EXISTS yield_rows (
    projection_id TEXT NOT NULL,
    polygon_id TEXT NOT NULL,
    table_kind TEXT NOT NULL,
    stratum TEXT NOT NULL,
    model TEXT NOT NULL,
    mode TEXT NOT NULL,
    seq INTEGER NOT NULL,
    year INTEGER NOT NULL,
    age DOUBLE PRECISION NOT NULL,
    phase TEXT NOT NULL,
    PRIMARY KEY (projection_id, polygon_id, table_kind, stratum, seq)
)`

	idxMessagesKind = `CREATE INDEX IF NOT EXISTS idx_messages_kind ON messages(projection_id, kind)`
	idxYieldYear    = `CREATE INDEX IF NOT EXISTS idx_yield_rows_year ON yield_rows(projection_id, year)`
)

// schemaDDL lists the schema statements in dependency order.
var schemaDDL = []string{
	createProjections,
	createPolygons,
	createStageResults,
	createMessages,
	createYieldRows,
	idxMessagesKind,
	idxYieldYear,
}
