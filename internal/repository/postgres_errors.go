package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// uniqueViolationCode はPostgreSQLのunique_violationのSQLSTATE。
const uniqueViolationCode = "23505"

// isUniqueViolation はlib/pqとpgxのどちらのドライバのエラーでも
// ユニーク制約違反を判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

// likeEscaper はLIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern は部分一致用のLIKEパターンを生成する。
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
