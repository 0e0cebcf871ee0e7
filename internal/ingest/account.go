package ingest

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.uber.org/zap"

	"github.com/yashlad/fserver/internal/account"
	"github.com/yashlad/fserver/internal/contenttype"
	"github.com/yashlad/fserver/internal/metadata"
)

const msgAccountSaved = "File save with account"

// bcrypt only uses the first 72 bytes of a credential.
const maxPasswordLen = 72

// AccountFields are the account attributes submitted with a file.
type AccountFields struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that the email is well formed and a credential is present.
func (f AccountFields) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Password, validation.Required, validation.Length(1, maxPasswordLen)),
	)
}

// AccountItem is one entry of a batch account upload.
type AccountItem struct {
	File   FileContent
	Fields AccountFields
}

// newAccount builds the account record owning info.
func newAccount(info *metadata.FileInfo, fields AccountFields) *account.Account {
	return &account.Account{
		Email:    fields.Email,
		Password: fields.Password,
		FileInfo: info,
	}
}

// StoreWithAccount stores content and then creates an account referencing
// the resulting FileInfo. A file failure is returned unchanged and no account
// is created. If the account write fails the stored file is rolled back.
func (s *Service) StoreWithAccount(ctx context.Context, content FileContent, fields AccountFields) (Envelope[account.Account], error) {
	start := time.Now()
	acc, err := s.storeWithAccount(ctx, content, fields)
	s.observe(OpStoreWithAccount, start, 1, int64(len(content.Data)), err)
	if err != nil {
		return Envelope[account.Account]{}, err
	}
	return Success(msgAccountSaved, acc), nil
}

func (s *Service) storeWithAccount(ctx context.Context, content FileContent, fields AccountFields) (*account.Account, error) {
	if err := s.checkContent(content); err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, &InvalidAccountError{Index: -1, Err: err}
	}
	return s.attachAccount(ctx, content, fields)
}

// attachAccount stores an already validated file and account.
func (s *Service) attachAccount(ctx context.Context, content FileContent, fields AccountFields) (*account.Account, error) {
	info, err := s.storeFile(ctx, content)
	if err != nil {
		return nil, err
	}

	saved, err := s.accounts.Save(ctx, newAccount(info, fields))
	if err != nil {
		s.rollbackFiles(ctx, []*metadata.FileInfo{info})
		return nil, &StorageError{Op: OpAccountWrite, Index: -1, Err: err}
	}

	s.logger.Info("account added",
		zap.String("account_id", saved.ID),
		zap.String("file_id", info.ID))
	return saved, nil
}

// StoreAccounts runs StoreWithAccount for every item, in order, under the
// same all-or-nothing rules as StoreMany: content types and account fields
// of the whole batch are checked first, and a storage failure rolls back
// every account and file the call already created.
func (s *Service) StoreAccounts(ctx context.Context, items []AccountItem) ([]Envelope[account.Account], error) {
	start := time.Now()
	out, err := s.storeAccounts(ctx, items)

	var size int64
	for _, item := range items {
		size += int64(len(item.File.Data))
	}
	s.observe(OpStoreAccounts, start, len(items), size, err)
	return out, err
}

func (s *Service) storeAccounts(ctx context.Context, items []AccountItem) ([]Envelope[account.Account], error) {
	if len(items) == 0 {
		return nil, &EmptyBatchError{Size: 0}
	}

	contents := make([]FileContent, len(items))
	for i, item := range items {
		contents[i] = item.File
	}
	if offenders := screen(contents); len(offenders) > 0 {
		return nil, &ValidationAggregateError{
			Offenders: offenders,
			Accepted:  contenttype.Accepted(),
			Accounts:  true,
		}
	}

	for i, item := range items {
		if err := item.Fields.Validate(); err != nil {
			return nil, &InvalidAccountError{Index: i, Err: err}
		}
	}

	created := make([]*account.Account, 0, len(items))
	for i, item := range items {
		acc, err := s.attachAccount(ctx, item.File, item.Fields)
		if err != nil {
			s.rollbackAccounts(ctx, created)
			return nil, atIndex(err, i)
		}
		created = append(created, acc)
	}

	out := make([]Envelope[account.Account], len(created))
	for i, acc := range created {
		out[i] = Success(msgAccountSaved, acc)
	}
	return out, nil
}

// rollbackAccounts removes accounts created earlier in a failed call along
// with their files, newest first.
func (s *Service) rollbackAccounts(ctx context.Context, accounts []*account.Account) {
	ctx = context.WithoutCancel(ctx)
	for i := len(accounts) - 1; i >= 0; i-- {
		acc := accounts[i]
		if err := s.accounts.Delete(ctx, acc.ID); err != nil {
			s.logger.Error("rollback account delete failed",
				zap.String("account_id", acc.ID),
				zap.Error(err))
		}
		if acc.FileInfo != nil {
			s.rollbackFiles(ctx, []*metadata.FileInfo{acc.FileInfo})
		}
	}
}
