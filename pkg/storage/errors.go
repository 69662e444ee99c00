package storage

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

// ErrNotFound is wrapped by every lookup that matched no row
var ErrNotFound = errors.New("record not found")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqNotNullViolation    = "23502"
	pqCheckViolation      = "23514"
)

// classify tags constraint violations and missing rows with an apierror.Kind.
// Driver text stays in the chain for logs but never reaches the envelope.
// Unrecognized errors are returned unchanged.
func classify(err error, table Table) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(table)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return tagged(err, apierror.KindDuplicate, "Çakışma hatası", "Bu kayıt zaten mevcut")
		case pqForeignKeyViolation:
			return tagged(err, apierror.KindBadRequest, "Geçersiz istek", "İlişkili kayıt bulunamadı")
		case pqNotNullViolation, pqCheckViolation:
			return tagged(err, apierror.KindBadRequest, "Geçersiz istek", "Kayıt kısıtlamaları sağlanmadı")
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return tagged(err, apierror.KindDuplicate, "Çakışma hatası", "Bu kayıt zaten mevcut")
		case sqlite3.ErrConstraintForeignKey:
			return tagged(err, apierror.KindBadRequest, "Geçersiz istek", "İlişkili kayıt bulunamadı")
		default:
			return tagged(err, apierror.KindBadRequest, "Geçersiz istek", "Kayıt kısıtlamaları sağlanmadı")
		}
	}

	return err
}

func notFound(table Table) error {
	title := table.NotFoundTitle
	if title == "" {
		title = "İstenen kayıt bulunamadı"
	}
	return &apierror.Error{Kind: apierror.KindNotFound, Title: title, Err: ErrNotFound}
}

func tagged(err error, kind apierror.Kind, title, message string) error {
	return &apierror.Error{Kind: kind, Title: title, Message: message, Err: err}
}
