package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"numfix/internal/storage"
)

// fakeTx embeds pgx.Tx so only the methods Repo uses need bodies.
type fakeTx struct {
	pgx.Tx
	execs      []string
	rowsPerOp  int64
	execErr    error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 " + strconv.FormatInt(f.rowsPerOp, 10)), nil
}

func (f *fakeTx) Commit(ctx context.Context) error { f.committed = true; return nil }

func (f *fakeTx) Rollback(ctx context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakePool struct {
	tx    *fakeTx
	execs []string
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) { return f.tx, nil }
func (f *fakePool) Close()                                    {}

func TestBuildInsertSQL_OnConflict(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("public.numfix_report", []string{"a", "b"}, [][]any{{1, 2}, {3, 4}}, []string{"b"})
	want := `INSERT INTO "public"."numfix_report" ("a", "b") VALUES ($1, $2), ($3, $4) ON CONFLICT ("b") DO NOTHING`
	if q != want {
		t.Fatalf("sql=\n%s\nwant\n%s", q, want)
	}
	if len(args) != 4 || args[0] != 1 || args[3] != 4 {
		t.Fatalf("args=%v", args)
	}

	q, _ = buildInsertSQL("t", []string{"a"}, [][]any{{1}}, nil)
	if strings.Contains(q, "ON CONFLICT") {
		t.Fatalf("plain insert has ON CONFLICT: %s", q)
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name: "reports.numfix_report",
		Columns: []storage.ColumnSpec{
			{Name: "run_id", Type: storage.TypeKey},
			{Name: "position", Type: storage.TypeInt},
			{Name: "record", Type: storage.TypeText},
		},
		Constraints: []storage.ConstraintSpec{{Kind: "unique", Columns: []string{"run_id"}}},
	}
	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL err=%v", err)
	}
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "reports";` {
		t.Fatalf("schemaSQL=%q", schemaSQL)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "reports"."numfix_report"`,
		`"run_id" VARCHAR(64) NOT NULL`,
		`"position" BIGINT NOT NULL`,
		`"record" TEXT NOT NULL`,
		`UNIQUE ("run_id")`,
	} {
		if !strings.Contains(tableSQL, want) {
			t.Fatalf("tableSQL missing %q: %s", want, tableSQL)
		}
	}

	if _, _, err := buildCreateSQL(storage.TableSpec{Name: "x"}); err == nil {
		t.Fatalf("expected error for table without columns")
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, schema, table string }{
		{"public.t", "public", "t"},
		{"t", "", "t"},
		{"a.b.c", "", "a.b.c"},
	}
	for _, tc := range tests {
		s, tb := splitQualifiedName(tc.in)
		if s != tc.schema || tb != tc.table {
			t.Fatalf("splitQualifiedName(%q)=(%q,%q), want (%q,%q)", tc.in, s, tb, tc.schema, tc.table)
		}
	}
}

func TestRepo_EnsureAndInsert(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{rowsPerOp: 2}
	pool := &fakePool{tx: tx}
	repo := &Repo{pool: pool}
	ctx := context.Background()

	spec := storage.TableSpec{Name: "public.r", Columns: []storage.ColumnSpec{{Name: "a", Type: storage.TypeInt}}}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable err=%v", err)
	}
	if len(pool.execs) != 2 {
		t.Fatalf("ddl statements=%d, want 2 (schema, table)", len(pool.execs))
	}

	n, err := repo.InsertRows(ctx, "public.r", []string{"a"}, [][]any{{1}, {2}}, []string{"a"})
	if err != nil || n != 2 {
		t.Fatalf("InsertRows n=%d err=%v", n, err)
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRepo_InsertErrorRollsBack(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{execErr: errors.New("duplicate")}
	repo := &Repo{pool: &fakePool{tx: tx}}

	if _, err := repo.InsertRows(context.Background(), "r", []string{"a"}, [][]any{{1}}, nil); err == nil {
		t.Fatalf("InsertRows err=nil, want error")
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}
