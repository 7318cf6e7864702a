package repositories

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"productapi/internal/apperrors"
	"productapi/internal/models"
)

// Audit columns written alongside the changed fields of a modified row.
var (
	productModifiedColumns = []string{"modified_by_id", "modified_at_utc"}
	userModifiedColumns    = []string{"updated_at_utc"}
)

// GORMCommitter writes staged entries inside a single database transaction.
type GORMCommitter struct {
	db *gorm.DB
}

// NewGORMCommitter creates a new instance of GORMCommitter.
func NewGORMCommitter(db *gorm.DB) *GORMCommitter {
	return &GORMCommitter{db: db}
}

// Commit applies entries in order. Either all of them are written or none.
func (c *GORMCommitter) Commit(ctx context.Context, entries []*Entry) (int64, error) {
	var affected int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			var (
				n   int64
				err error
			)
			switch e.Kind {
			case KindProduct:
				n, err = commitProduct(tx, e)
			case KindUser:
				n, err = commitUser(tx, e)
			default:
				err = fmt.Errorf("unknown entry kind %s", e.Kind)
			}
			if err != nil {
				return err
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		if apperrors.IsDomain(err) {
			return 0, err
		}
		return 0, apperrors.NewStore("commit", err)
	}
	return affected, nil
}

func commitProduct(tx *gorm.DB, e *Entry) (int64, error) {
	p := e.Product
	switch e.State {
	case StateAdded:
		res := tx.Omit(clause.Associations).Create(p)
		return res.RowsAffected, res.Error
	case StateModified:
		cols := append(slices.Clone(e.Fields), productModifiedColumns...)
		res := tx.Model(&models.Product{ID: p.ID}).Select(cols).Updates(p)
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, apperrors.NewNotFound("Product", p.ID)
		}
		return res.RowsAffected, nil
	case StateDeleted:
		res := tx.Delete(&models.Product{}, "id = ?", p.ID)
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, apperrors.NewNotFound("Product", p.ID)
		}
		return res.RowsAffected, nil
	default:
		return 0, fmt.Errorf("unsupported product state %s", e.State)
	}
}

func commitUser(tx *gorm.DB, e *Entry) (int64, error) {
	u := e.User
	switch e.State {
	case StateAdded:
		// Two first requests for the same identity may race; the loser keeps
		// the row the winner wrote.
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(u)
		return res.RowsAffected, res.Error
	case StateModified:
		cols := append(slices.Clone(e.Fields), userModifiedColumns...)
		res := tx.Model(&models.User{ID: u.ID}).Select(cols).Updates(u)
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, apperrors.NewNotFound("User", u.ID)
		}
		return res.RowsAffected, nil
	default:
		return 0, fmt.Errorf("unsupported user state %s", e.State)
	}
}
