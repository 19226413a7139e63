package config

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/ccdetect/pkg/migrate"
)

// DefaultProfile is the profile name used when none is given
const DefaultProfile = "default"

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Parameters are stored one row per dotted key (e.g. "detection.peek_size")
// with a YAML-encoded value, grouped into named profiles.
type SQLiteProvider struct {
	db      *sql.DB
	dbPath  string
	profile string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath, profile string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if profile == "" {
		profile = DefaultProfile
	}

	return &SQLiteProvider{
		db:      db,
		dbPath:  dbPath,
		profile: profile,
	}, nil
}

func (s *SQLiteProvider) migrator() *migrate.Migrator {
	provider := migrate.NewFSProvider(migrations, "migrations", "schema_migrations")
	return migrate.NewMigrator(s.db, provider, nil)
}

// InitSchema applies any pending configuration schema migrations
func (s *SQLiteProvider) InitSchema() error {
	if err := s.migrator().MigrateUp(); err != nil {
		return fmt.Errorf("failed to migrate configuration schema: %w", err)
	}
	return nil
}

// MigrateSchema moves the configuration schema up or down to version.
// Version 0 removes every configuration table.
func (s *SQLiteProvider) MigrateSchema(version int) error {
	if version < 0 {
		return fmt.Errorf("invalid schema version %d", version)
	}
	if err := s.migrator().MigrateTo(version); err != nil {
		return fmt.Errorf("failed to migrate configuration schema to version %d: %w", version, err)
	}
	return nil
}

// SchemaStatus returns the applied schema version and the migrations not yet applied
func (s *SQLiteProvider) SchemaStatus() (int, []migrate.Migration, error) {
	m := s.migrator()
	current, err := m.CurrentVersion()
	if err != nil {
		return 0, nil, err
	}
	pending, err := m.Pending()
	if err != nil {
		return 0, nil, err
	}
	return current, pending, nil
}

// LoadConfig loads the profile's parameters over Defaults
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	query := `
		SELECT p.key, p.value
		FROM config_params p
		JOIN configs c ON c.id = p.config_id
		WHERE c.name = ?
		ORDER BY p.key
	`

	rows, err := s.db.Query(query, s.profile)
	if err != nil {
		return nil, fmt.Errorf("failed to query config params: %w", err)
	}
	defer rows.Close()

	tree := map[string]interface{}{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config param row: %w", err)
		}
		var v interface{}
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			return nil, fmt.Errorf("failed to decode config param %s: %w", key, err)
		}
		setPath(tree, strings.Split(key, "."), v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	doc, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild configuration: %w", err)
	}
	return ParseYAML(doc)
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the profile's parameters with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	if err := configData.Validate(); err != nil {
		return err
	}

	doc, err := yaml.Marshal(configData)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(doc, &tree); err != nil {
		return fmt.Errorf("failed to flatten configuration: %w", err)
	}
	params := map[string]string{}
	if err := flatten("", tree, params); err != nil {
		return err
	}

	// Start transaction
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, s.profile)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM config_params WHERE config_id = ?`, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.Exec(`INSERT INTO config_params (config_id, key, value) VALUES (?, ?, ?)`, configID, k, params[k]); err != nil {
			return fmt.Errorf("failed to insert config param %s: %w", k, err)
		}
	}

	// Commit transaction
	return tx.Commit()
}

func (s *SQLiteProvider) upsertConfig(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO configs (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET updated_at = datetime('now')
	`, name)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func setPath(tree map[string]interface{}, path []string, v interface{}) {
	for _, p := range path[:len(path)-1] {
		next, ok := tree[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			tree[p] = next
		}
		tree = next
	}
	tree[path[len(path)-1]] = v
}

func flatten(prefix string, tree map[string]interface{}, out map[string]string) error {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			if err := flatten(key, sub, out); err != nil {
				return err
			}
			continue
		}
		enc, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode config param %s: %w", key, err)
		}
		out[key] = strings.TrimSpace(string(enc))
	}
	return nil
}
