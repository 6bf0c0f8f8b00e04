package memory

import "context"

type RecipientRepo struct {
	store *Store
}

func NewRecipientRepo(store *Store) RecipientRepo {
	return RecipientRepo{store: store}
}

func (r RecipientRepo) RecipientFor(_ context.Context, operator string) (string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.recipients[operator], nil
}

func (r RecipientRepo) PutRecipient(_ context.Context, operator, chatID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if chatID == "" {
		delete(r.store.recipients, operator)
		return nil
	}
	r.store.recipients[operator] = chatID
	return nil
}
