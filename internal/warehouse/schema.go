// Package warehouse implements the Postgres-backed warehouse store for
// Shelfgap: gap report materialization, snapshot publishing, and the streak
// read contract.
package warehouse

const schemaDDL = `
CREATE TABLE IF NOT EXISTS distro_grid (
    tenant_id        BIGINT NOT NULL,
    salesperson_id   TEXT,
    salesperson_name TEXT,
    manager_id       TEXT,
    manager_name     TEXT,
    chain_name       TEXT NOT NULL,
    store_number     TEXT NOT NULL,
    store_name       TEXT,
    product_id       TEXT,
    upc              TEXT NOT NULL,
    product_name     TEXT,
    supplier_name    TEXT,
    category         TEXT,
    subcategory      TEXT,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_distro_grid_tenant_store ON distro_grid (tenant_id, chain_name, store_number);

CREATE TABLE IF NOT EXISTS sales_facts (
    tenant_id          BIGINT NOT NULL,
    chain_name         TEXT NOT NULL,
    store_number       TEXT NOT NULL,
    upc                TEXT NOT NULL,
    cases_sold         NUMERIC,
    last_purchase_date DATE,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sales_facts_tenant_key ON sales_facts (tenant_id, chain_name, store_number, upc);

CREATE TABLE IF NOT EXISTS customers (
    tenant_id    BIGINT NOT NULL,
    chain_name   TEXT NOT NULL,
    store_number TEXT NOT NULL,
    store_name   TEXT,
    address      TEXT,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_customers_tenant_store ON customers (tenant_id, chain_name, store_number, updated_at DESC);

CREATE TABLE IF NOT EXISTS gap_report_runs (
    run_id              TEXT PRIMARY KEY,
    tenant_id           BIGINT NOT NULL,
    snapshot_week_start DATE NOT NULL,
    triggered_by        TEXT,
    row_count           INTEGER NOT NULL,
    run_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT uq_runs_tenant_week UNIQUE (tenant_id, snapshot_week_start)
);
CREATE INDEX IF NOT EXISTS idx_runs_tenant_recent ON gap_report_runs (tenant_id, snapshot_week_start DESC, run_at DESC);

CREATE TABLE IF NOT EXISTS gap_report_snapshot (
    tenant_id           BIGINT NOT NULL,
    snapshot_week_start DATE NOT NULL,
    run_id              TEXT NOT NULL,
    salesperson_id      TEXT,
    salesperson_name    TEXT,
    manager_id          TEXT,
    manager_name        TEXT,
    chain_name          TEXT,
    store_number        TEXT,
    store_name          TEXT,
    product_id          TEXT,
    upc                 TEXT,
    sr_upc              TEXT,
    product_name        TEXT,
    supplier_name       TEXT,
    category            TEXT,
    subcategory         TEXT,
    gap_cases           NUMERIC,
    in_schematic        BOOLEAN NOT NULL DEFAULT TRUE,
    is_gap              BOOLEAN NOT NULL,
    last_purchase_date  DATE
);
CREATE INDEX IF NOT EXISTS idx_snapshot_tenant_week ON gap_report_snapshot (tenant_id, snapshot_week_start);
CREATE INDEX IF NOT EXISTS idx_snapshot_run ON gap_report_snapshot (run_id);

CREATE TABLE IF NOT EXISTS gap_report_refresh (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    refreshed_at TIMESTAMPTZ NOT NULL
);
INSERT INTO gap_report_refresh (id, refreshed_at)
    VALUES (1, NOW()) ON CONFLICT (id) DO NOTHING;

CREATE MATERIALIZED VIEW IF NOT EXISTS gap_report AS
SELECT
    d.tenant_id,
    d.salesperson_id,
    d.salesperson_name,
    d.manager_id,
    d.manager_name,
    d.chain_name,
    d.store_number,
    d.store_name,
    d.product_id,
    d.upc                                   AS dg_upc,
    f.upc                                   AS sr_upc,
    d.product_name,
    d.supplier_name,
    d.category,
    d.subcategory,
    f.cases_sold                            AS gap_cases,
    1                                       AS in_schematic,
    (f.upc IS NOT NULL)::int                AS purchased_yes_no,
    f.last_purchase_date
FROM distro_grid d
LEFT JOIN sales_facts f
       ON f.tenant_id = d.tenant_id
      AND f.chain_name = d.chain_name
      AND f.store_number = d.store_number
      AND f.upc = d.upc;
CREATE INDEX IF NOT EXISTS idx_gap_report_tenant ON gap_report (tenant_id);

CREATE OR REPLACE VIEW gap_current_streaks AS
WITH weeks AS (
    SELECT tenant_id, snapshot_week_start,
           ROW_NUMBER() OVER (PARTITION BY tenant_id ORDER BY snapshot_week_start) AS wk_idx
    FROM gap_report_runs
),
gaps AS (
    SELECT s.tenant_id, s.salesperson_name, s.chain_name, s.store_number,
           s.store_name, s.upc, s.product_name, s.supplier_name,
           s.snapshot_week_start, w.wk_idx
    FROM gap_report_snapshot s
    JOIN weeks w
      ON w.tenant_id = s.tenant_id
     AND w.snapshot_week_start = s.snapshot_week_start
    WHERE s.is_gap AND s.upc IS NOT NULL
),
grouped AS (
    SELECT *,
           wk_idx - ROW_NUMBER() OVER (
               PARTITION BY tenant_id, salesperson_name, chain_name, store_number, upc
               ORDER BY wk_idx
           ) AS grp
    FROM gaps
),
streaks AS (
    SELECT tenant_id, salesperson_name, chain_name, store_number, upc,
           MAX(store_name)            AS store_name,
           MAX(product_name)          AS product_name,
           MAX(supplier_name)         AS supplier_name,
           COUNT(*)::int              AS streak_weeks,
           MIN(snapshot_week_start)   AS first_gap_week,
           MAX(snapshot_week_start)   AS last_gap_week,
           MAX(wk_idx)                AS last_idx
    FROM grouped
    GROUP BY tenant_id, salesperson_name, chain_name, store_number, upc, grp
),
latest AS (
    SELECT tenant_id, MAX(wk_idx) AS latest_idx, MAX(snapshot_week_start) AS latest_week
    FROM weeks
    GROUP BY tenant_id
)
SELECT st.tenant_id,
       l.latest_week    AS snapshot_week_start,
       st.first_gap_week,
       st.last_gap_week,
       st.salesperson_name,
       st.chain_name,
       st.store_number,
       st.store_name,
       st.upc,
       st.product_name,
       st.supplier_name,
       st.streak_weeks
FROM streaks st
JOIN latest l ON l.tenant_id = st.tenant_id
WHERE st.last_idx = l.latest_idx;
`
