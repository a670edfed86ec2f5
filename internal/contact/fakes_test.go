package contact

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// In-memory repository for unit tests, mirroring the mongo semantics
// the service relies on (fill-only $set keys, visit reassignment).

type fakeRepo struct {
	mu       sync.Mutex
	contacts map[string]*Contact
	visits   []PageVisit
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{contacts: make(map[string]*Contact)}
}

func (f *fakeRepo) FindByContactID(ctx context.Context, contactID string) (*Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[contactID]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (f *fakeRepo) Insert(ctx context.Context, contact *Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *contact
	f.contacts[contact.ContactID] = &clone
	return nil
}

func (f *fakeRepo) ApplySet(ctx context.Context, contactID string, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[contactID]
	if !ok {
		return nil
	}
	for key, raw := range set {
		switch key {
		case "updated_at":
			if t, ok := raw.(time.Time); ok {
				c.UpdatedAt = t
			}
		case "name":
			c.Name = raw.(string)
		case "email":
			c.Email = raw.(string)
		case "phone":
			c.Phone = raw.(string)
		case "first_name":
			c.FirstName = raw.(string)
		case "last_name":
			c.LastName = raw.(string)
		case "session_id":
			c.SessionID = raw.(string)
		case "client_ip":
			c.ClientIP = raw.(string)
		case "merged_into":
			c.MergedInto = raw.(string)
		case "merged_children":
			c.MergedChildren = raw.([]string)
		default:
			if len(key) > len("attribution.") && key[:len("attribution.")] == "attribution." {
				if c.Attribution == nil {
					c.Attribution = &Attribution{}
				}
				if setter, ok := knownAttributionKeys[key[len("attribution."):]]; ok {
					setter(c.Attribution, raw.(string))
				}
			}
		}
	}
	return nil
}

func (f *fakeRepo) ClearMergedInto(ctx context.Context, contactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[contactID]; ok {
		c.MergedInto = ""
	}
	return nil
}

func (f *fakeRepo) PullMergedChild(ctx context.Context, parentContactID, childContactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, ok := f.contacts[parentContactID]
	if !ok {
		return nil
	}
	kept := parent.MergedChildren[:0]
	for _, id := range parent.MergedChildren {
		if id != childContactID {
			kept = append(kept, id)
		}
	}
	parent.MergedChildren = kept
	return nil
}

func (f *fakeRepo) List(ctx context.Context, search string, includeMerged bool) ([]Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Contact
	for _, c := range f.contacts {
		if !includeMerged && c.MergedInto != "" {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) DeleteByContactID(ctx context.Context, contactID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[contactID]; !ok {
		return false, nil
	}
	delete(f.contacts, contactID)
	for _, c := range f.contacts {
		kept := c.MergedChildren[:0]
		for _, id := range c.MergedChildren {
			if id != contactID {
				kept = append(kept, id)
			}
		}
		c.MergedChildren = kept
	}
	return true, nil
}

func (f *fakeRepo) FindIPCandidates(ctx context.Context, clientIP, excludeContactID string, since time.Time) ([]Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Contact
	for _, c := range f.contacts {
		if c.ClientIP == clientIP && c.ContactID != excludeContactID && c.MergedInto == "" && !c.CreatedAt.Before(since) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindBySession(ctx context.Context, sessionID string) ([]Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Contact
	for _, c := range f.contacts {
		if c.SessionID == sessionID && c.MergedInto == "" {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) CountActive(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.contacts {
		if c.MergedInto == "" {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) InsertVisit(ctx context.Context, visit *PageVisit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, *visit)
	return nil
}

func (f *fakeRepo) VisitsByContact(ctx context.Context, contactID string) ([]PageVisit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PageVisit
	for _, v := range f.visits {
		if v.ContactID == contactID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeRepo) CountVisits(ctx context.Context, contactID string) (int64, error) {
	visits, _ := f.VisitsByContact(ctx, contactID)
	return int64(len(visits)), nil
}

func (f *fakeRepo) CountAllVisits(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.visits)), nil
}

func (f *fakeRepo) CountVisitsSince(ctx context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, v := range f.visits {
		if !v.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ReassignVisits(ctx context.Context, fromContactID, toContactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.visits {
		if f.visits[i].ContactID == fromContactID {
			f.visits[i].ContactID = toContactID
			f.visits[i].OriginalContactID = fromContactID
		}
	}
	return nil
}

func (f *fakeRepo) RestoreVisits(ctx context.Context, parentContactID, originalContactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.visits {
		if f.visits[i].ContactID == parentContactID && f.visits[i].OriginalContactID == originalContactID {
			f.visits[i].ContactID = originalContactID
		}
	}
	return nil
}

func (f *fakeRepo) DeleteVisitsByContact(ctx context.Context, contactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.visits[:0]
	for _, v := range f.visits {
		if v.ContactID != contactID {
			kept = append(kept, v)
		}
	}
	f.visits = kept
	return nil
}

func (f *fakeRepo) EnsureIndexes(ctx context.Context) error { return nil }
