package store

// Schema v1 - catalog tables, fingerprint history and both block indexes
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Releases, insert-if-absent
CREATE TABLE IF NOT EXISTS albums (
  release_id TEXT PRIMARY KEY,
  title TEXT,
  album_artist TEXT,
  release_year INTEGER,
  country TEXT
);

-- One row per physical file
CREATE TABLE IF NOT EXISTS tracks (
  path TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL,
  acoustid_id TEXT,
  album_id TEXT REFERENCES albums(release_id),
  title TEXT,
  track_no INTEGER,
  disc_no INTEGER,
  quality_score INTEGER NOT NULL DEFAULT 0,
  format TEXT,
  bitrate INTEGER,
  sample_rate INTEGER,
  bit_depth INTEGER,
  file_size INTEGER,
  last_modified INTEGER,
  processed INTEGER NOT NULL DEFAULT 0,
  is_duplicate INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tracks_acoustid ON tracks(acoustid_id);
CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id, acoustid_id);
CREATE INDEX IF NOT EXISTS idx_tracks_duplicate ON tracks(is_duplicate);

-- Append-only fingerprint to identifier association, outlives tracks
CREATE TABLE IF NOT EXISTS fingerprint_history (
  fingerprint TEXT NOT NULL,
  acoustid_id TEXT NOT NULL,
  first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (fingerprint, acoustid_id)
);

-- Block index over canonical tracks
CREATE TABLE IF NOT EXISTS track_blocks (
  block TEXT NOT NULL,
  path TEXT NOT NULL,
  UNIQUE (block, path)
);

CREATE INDEX IF NOT EXISTS idx_track_blocks_path ON track_blocks(path);

-- Block index over fingerprint history
CREATE TABLE IF NOT EXISTS history_blocks (
  block TEXT NOT NULL,
  acoustid_id TEXT NOT NULL,
  UNIQUE (block, acoustid_id)
);

CREATE INDEX IF NOT EXISTS idx_history_blocks_owner ON history_blocks(acoustid_id);
`

// Schema v2 - run audit trail
const schemaV2 = `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at DATETIME NOT NULL,
  finished_at DATETIME,
  status TEXT NOT NULL DEFAULT 'running',
  dry_run INTEGER NOT NULL DEFAULT 0,
  processed INTEGER NOT NULL DEFAULT 0,
  kept_new INTEGER NOT NULL DEFAULT 0,
  kept_old INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  errors INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
