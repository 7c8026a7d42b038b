package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/inboxkit/mailstore/columns"
)

// Account row column names. Custom labels live under "label:<id>"; quota
// overrides, when present, replace the service-wide defaults.
const (
	labelColumnPrefix = "label:"
	quotaBytesColumn  = "quota:bytes"
	quotaCountColumn  = "quota:count"
)

// Quota holds a mailbox's storage limits. Zero fields mean "no override";
// the service falls back to its configured defaults.
type Quota struct {
	MaxBytes    int64
	MaxMessages int64
}

// AccountStore reads and writes per-mailbox account records: the custom
// label registry and quota overrides.
type AccountStore struct {
	cols columns.Store
}

// NewAccountStore creates an account store over cols.
func NewAccountStore(cols columns.Store) *AccountStore {
	return &AccountStore{cols: cols}
}

// Labels returns the mailbox's full label map: reserved labels plus every
// persisted custom label. Malformed label columns yield ErrBadLabel.
func (s *AccountStore) Labels(ctx context.Context, mailbox Mailbox) (LabelMap, error) {
	cols, err := s.cols.Row(ctx, TableAccounts, accountKey(mailbox))
	if err != nil {
		return nil, err
	}
	labels := NewLabelMap()
	for _, c := range cols {
		if !strings.HasPrefix(c.Name, labelColumnPrefix) {
			continue
		}
		id, err := strconv.Atoi(c.Name[len(labelColumnPrefix):])
		if err != nil {
			return nil, ErrBadLabel
		}
		name, attrs := decodeLabelValue(string(c.Value))
		labels[id] = &Label{ID: id, Name: name, Attributes: attrs}
	}
	return labels, nil
}

// PutLabel persists a custom label record.
func (s *AccountStore) PutLabel(ctx context.Context, mailbox Mailbox, l *Label) error {
	batch := columns.NewBatch()
	batch.Insert(TableAccounts, accountKey(mailbox), columns.Column{
		Name:  labelColumnPrefix + strconv.Itoa(l.ID),
		Value: []byte(encodeLabelValue(l.Name, l.Attributes)),
	})
	return s.cols.Apply(ctx, batch)
}

// DeleteLabel removes a custom label record.
func (s *AccountStore) DeleteLabel(ctx context.Context, mailbox Mailbox, id int) error {
	batch := columns.NewBatch()
	batch.Delete(TableAccounts, accountKey(mailbox), labelColumnPrefix+strconv.Itoa(id))
	return s.cols.Apply(ctx, batch)
}

// Quota returns the mailbox's quota overrides. A mailbox with no account
// row or no override columns yields the zero Quota.
func (s *AccountStore) Quota(ctx context.Context, mailbox Mailbox) (Quota, error) {
	values, err := s.cols.Get(ctx, TableAccounts, accountKey(mailbox),
		[]string{quotaBytesColumn, quotaCountColumn})
	if err != nil {
		return Quota{}, err
	}
	var q Quota
	if v, ok := values[quotaBytesColumn]; ok {
		q.MaxBytes, _ = strconv.ParseInt(string(v), 10, 64)
	}
	if v, ok := values[quotaCountColumn]; ok {
		q.MaxMessages, _ = strconv.ParseInt(string(v), 10, 64)
	}
	return q, nil
}

// SetQuota persists quota overrides. Zero fields clear the corresponding
// override.
func (s *AccountStore) SetQuota(ctx context.Context, mailbox Mailbox, q Quota) error {
	batch := columns.NewBatch()
	if q.MaxBytes > 0 {
		batch.Insert(TableAccounts, accountKey(mailbox), columns.Column{
			Name:  quotaBytesColumn,
			Value: []byte(strconv.FormatInt(q.MaxBytes, 10)),
		})
	} else {
		batch.Delete(TableAccounts, accountKey(mailbox), quotaBytesColumn)
	}
	if q.MaxMessages > 0 {
		batch.Insert(TableAccounts, accountKey(mailbox), columns.Column{
			Name:  quotaCountColumn,
			Value: []byte(strconv.FormatInt(q.MaxMessages, 10)),
		})
	} else {
		batch.Delete(TableAccounts, accountKey(mailbox), quotaCountColumn)
	}
	return s.cols.Apply(ctx, batch)
}

// Delete removes the whole account row.
func (s *AccountStore) Delete(ctx context.Context, mailbox Mailbox) error {
	batch := columns.NewBatch()
	batch.DeleteRow(TableAccounts, accountKey(mailbox))
	return s.cols.Apply(ctx, batch)
}
