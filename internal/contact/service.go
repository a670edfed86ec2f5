package contact

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"stealthtrack/internal/constants"
	"stealthtrack/internal/events"
	"stealthtrack/internal/logger"
	"stealthtrack/pkg/errors"
	"stealthtrack/pkg/metrics"
)

// Service owns contact ingestion, stitching and the dashboard reads. It
// is the publisher of the identification event the automation engine
// listens on.
type Service struct {
	repo       Repository
	guard      IdentificationGuard
	bus        *events.Bus
	log        logger.Logger
	autoStitch bool
}

func NewService(repo Repository, guard IdentificationGuard, bus *events.Bus, log logger.Logger, autoStitch bool) *Service {
	if guard == nil {
		guard = NewNoopGuard()
	}
	return &Service{
		repo:       repo,
		guard:      guard,
		bus:        bus,
		log:        log,
		autoStitch: autoStitch,
	}
}

// TrackPageView upserts the contact, logs the visit and runs the IP
// auto-stitch heuristic.
func (s *Service) TrackPageView(ctx context.Context, req *PageViewRequest, clientIP string) (string, error) {
	now := time.Now().UTC()
	metrics.IncTrackingEvent("pageview")

	update := &TrackUpdate{
		ContactID:   req.ContactID,
		SessionID:   req.SessionID,
		Attribution: SanitizeAttribution(req.Attribution),
	}
	if err := s.upsert(ctx, update, clientIP, now); err != nil {
		return "", err
	}

	visit := &PageVisit{
		ID:          uuid.New().String(),
		ContactID:   req.ContactID,
		SessionID:   req.SessionID,
		ClientIP:    clientIP,
		CurrentURL:  req.CurrentURL,
		ReferrerURL: req.ReferrerURL,
		PageTitle:   req.PageTitle,
		Attribution: SanitizeAttribution(req.Attribution),
		Timestamp:   now,
	}
	if err := s.repo.InsertVisit(ctx, visit); err != nil {
		return "", err
	}

	s.ipAutoStitch(ctx, req.ContactID, clientIP, now)
	return visit.ID, nil
}

// TrackLead upserts identity fields captured from a single form field.
func (s *Service) TrackLead(ctx context.Context, req *LeadRequest, clientIP string) error {
	now := time.Now().UTC()
	metrics.IncTrackingEvent("lead")

	update := &TrackUpdate{
		ContactID:   req.ContactID,
		SessionID:   req.SessionID,
		Email:       req.Email,
		Phone:       req.Phone,
		Name:        req.Name,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Attribution: SanitizeAttribution(req.Attribution),
	}
	if err := s.upsert(ctx, update, clientIP, now); err != nil {
		return err
	}

	s.ipAutoStitch(ctx, req.ContactID, clientIP, now)
	return nil
}

// TrackRegistration upserts a full form submission and logs a visit when
// the tracker supplied the page URL.
func (s *Service) TrackRegistration(ctx context.Context, req *RegistrationRequest, clientIP string) error {
	now := time.Now().UTC()
	metrics.IncTrackingEvent("registration")

	update := &TrackUpdate{
		ContactID:   req.ContactID,
		SessionID:   req.SessionID,
		Email:       req.Email,
		Phone:       req.Phone,
		Name:        req.Name,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Attribution: SanitizeAttribution(req.Attribution),
	}
	if err := s.upsert(ctx, update, clientIP, now); err != nil {
		return err
	}

	if req.CurrentURL != "" {
		title := req.PageTitle
		if title == "" {
			title = "Registration"
		}
		visit := &PageVisit{
			ID:          uuid.New().String(),
			ContactID:   req.ContactID,
			SessionID:   req.SessionID,
			ClientIP:    clientIP,
			CurrentURL:  req.CurrentURL,
			ReferrerURL: req.ReferrerURL,
			PageTitle:   title,
			Attribution: SanitizeAttribution(req.Attribution),
			Timestamp:   now,
		}
		if err := s.repo.InsertVisit(ctx, visit); err != nil {
			return err
		}
	}

	s.ipAutoStitch(ctx, req.ContactID, clientIP, now)
	return nil
}

// upsert applies a tracking update to the contact keyed by contact_id,
// creating it when absent. Identity fields take the latest non-empty
// value, attribution keys and client_ip only fill gaps. When the update
// flips the contact from anonymous to identified, the identification
// event is published.
func (s *Service) upsert(ctx context.Context, update *TrackUpdate, clientIP string, now time.Time) error {
	if update.ContactID == "" {
		return errors.ErrValidation.WithDetail("message", "contact_id is required")
	}

	existing, err := s.repo.FindByContactID(ctx, update.ContactID)
	if err != nil {
		return err
	}

	wasIdentified := existing != nil && existing.Identified()

	if existing == nil {
		c := &Contact{
			ID:          uuid.New().String(),
			ContactID:   update.ContactID,
			SessionID:   update.SessionID,
			ClientIP:    clientIP,
			Name:        update.Name,
			Email:       update.Email,
			Phone:       update.Phone,
			FirstName:   update.FirstName,
			LastName:    update.LastName,
			Attribution: update.Attribution,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, c); err != nil {
			return err
		}
		if c.Identified() {
			s.publishIdentified(ctx, c)
		}
		return nil
	}

	set := bson.M{"updated_at": now}
	for field, value := range map[string]string{
		"name":       update.Name,
		"email":      update.Email,
		"phone":      update.Phone,
		"first_name": update.FirstName,
		"last_name":  update.LastName,
		"session_id": update.SessionID,
	} {
		if value != "" {
			set[field] = value
		}
	}
	if clientIP != "" && existing.ClientIP == "" {
		set["client_ip"] = clientIP
	}
	for k, v := range attributionMap(update.Attribution) {
		if !attributionHas(existing.Attribution, k) {
			set["attribution."+k] = v
		}
	}

	if err := s.repo.ApplySet(ctx, update.ContactID, set); err != nil {
		return err
	}

	if !wasIdentified {
		updated, err := s.repo.FindByContactID(ctx, update.ContactID)
		if err != nil {
			return err
		}
		if updated != nil && updated.Identified() {
			s.publishIdentified(ctx, updated)
		}
	}
	return nil
}

// publishIdentified emits the identification event for a contact that
// just transitioned from anonymous. The guard absorbs duplicate tracker
// deliveries racing each other.
func (s *Service) publishIdentified(ctx context.Context, c *Contact) {
	first, err := s.guard.FirstIdentification(ctx, c.ContactID)
	if err != nil {
		// Guard failure must not drop a genuine identification.
		s.log.WarnwCtx(ctx, "Identification guard unavailable, publishing anyway",
			"contact_id", c.ContactID,
			"error", err,
		)
		first = true
	}
	if !first {
		s.log.DebugwCtx(ctx, "Duplicate identification suppressed", "contact_id", c.ContactID)
		return
	}

	metrics.ContactsIdentifiedTotal.Inc()
	s.log.InfowCtx(ctx, "Contact identified",
		"contact_id", c.ContactID,
		"has_email", c.Email != "",
		"has_phone", c.Phone != "",
	)
	s.bus.Publish(ctx, events.ContactIdentified{
		ContactID:  c.ContactID,
		Attributes: c.Flatten(),
		OccurredAt: time.Now().UTC(),
	})
}

// Stitch merges the child contact into the parent. Idempotent when the
// child is already merged into the same parent; a child merged into a
// different parent is unmerged first and re-stitched.
func (s *Service) Stitch(ctx context.Context, parentID, childID string) (*StitchResult, error) {
	result, err := s.doStitch(ctx, parentID, childID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if result.Status == StitchStatusStitched {
		metrics.ContactsStitchedTotal.WithLabelValues("explicit").Inc()
	}
	return result, nil
}

func (s *Service) doStitch(ctx context.Context, parentID, childID string, now time.Time) (*StitchResult, error) {
	if parentID == childID {
		return &StitchResult{Status: StitchStatusSame, ParentContactID: parentID}, nil
	}

	parent, err := s.repo.FindByContactID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	child, err := s.repo.FindByContactID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if parent == nil || child == nil {
		return &StitchResult{Status: StitchStatusNotFound}, nil
	}

	if child.MergedInto == parentID {
		return &StitchResult{Status: StitchStatusAlreadyMerged, MergedInto: parentID}, nil
	}

	if child.MergedInto != "" && child.MergedInto != parentID {
		oldParentID := child.MergedInto
		s.log.InfowCtx(ctx, "Re-stitching child to new parent",
			"child_contact_id", childID,
			"old_parent_contact_id", oldParentID,
			"new_parent_contact_id", parentID,
		)
		if err := s.repo.PullMergedChild(ctx, oldParentID, childID); err != nil {
			return nil, err
		}
		if err := s.repo.RestoreVisits(ctx, oldParentID, childID); err != nil {
			return nil, err
		}
		if err := s.repo.ClearMergedInto(ctx, childID); err != nil {
			return nil, err
		}
	}

	parentWasIdentified := parent.Identified()

	set := bson.M{"updated_at": now}
	for field, pair := range map[string][2]string{
		"name":       {child.Name, parent.Name},
		"email":      {child.Email, parent.Email},
		"phone":      {child.Phone, parent.Phone},
		"first_name": {child.FirstName, parent.FirstName},
		"last_name":  {child.LastName, parent.LastName},
		"session_id": {child.SessionID, parent.SessionID},
		"client_ip":  {child.ClientIP, parent.ClientIP},
	} {
		if pair[0] != "" && pair[1] == "" {
			set[field] = pair[0]
		}
	}
	for k, v := range attributionMap(child.Attribution) {
		if !attributionHas(parent.Attribution, k) {
			set["attribution."+k] = v
		}
	}

	children := parent.MergedChildren
	if !contains(children, childID) {
		children = append(children, childID)
	}
	set["merged_children"] = children

	if err := s.repo.ApplySet(ctx, parentID, set); err != nil {
		return nil, err
	}

	if err := s.repo.ReassignVisits(ctx, childID, parentID); err != nil {
		return nil, err
	}

	if err := s.repo.ApplySet(ctx, childID, bson.M{"merged_into": parentID, "updated_at": now}); err != nil {
		return nil, err
	}

	// Pulling identity into an anonymous parent is an identification.
	if !parentWasIdentified {
		merged, err := s.repo.FindByContactID(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if merged != nil && merged.Identified() {
			s.publishIdentified(ctx, merged)
		}
	}

	s.log.InfowCtx(ctx, "Stitched contacts",
		"parent_contact_id", parentID,
		"child_contact_id", childID,
	)
	return &StitchResult{
		Status:          StitchStatusStitched,
		ParentContactID: parentID,
		ChildContactID:  childID,
	}, nil
}

// StitchBySession merges all unmerged contacts sharing a session into
// the earliest one.
func (s *Service) StitchBySession(ctx context.Context, sessionID string) (string, []StitchResult, error) {
	if sessionID == "" {
		return "", nil, errors.ErrValidation.WithDetail("message", "session_id is required")
	}

	contacts, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	if len(contacts) < 2 {
		return "", nil, nil
	}

	now := time.Now().UTC()
	parent := contacts[0]
	results := make([]StitchResult, 0, len(contacts)-1)
	for _, child := range contacts[1:] {
		r, err := s.doStitch(ctx, parent.ContactID, child.ContactID, now)
		if err != nil {
			return "", nil, err
		}
		if r.Status == StitchStatusStitched {
			metrics.ContactsStitchedTotal.WithLabelValues("session").Inc()
		}
		results = append(results, *r)
	}
	return parent.ContactID, results, nil
}

// ipAutoStitch merges two contacts seen from the same IP within a short
// window, but only when exactly one side carries attribution and the
// other carries identity. Anonymous page-only visitors never match the
// asymmetry, which keeps false positives out.
func (s *Service) ipAutoStitch(ctx context.Context, contactID, clientIP string, now time.Time) {
	if !s.autoStitch || clientIP == "" {
		return
	}

	candidates, err := s.repo.FindIPCandidates(ctx, clientIP, contactID, now.Add(-constants.AutoStitchWindow))
	if err != nil {
		s.log.WarnwCtx(ctx, "IP auto-stitch candidate lookup failed", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	current, err := s.repo.FindByContactID(ctx, contactID)
	if err != nil || current == nil || current.MergedInto != "" {
		return
	}

	curAttr := current.Attribution.HasCampaignData()
	curIdent := current.Email != "" || current.Phone != ""

	for i := range candidates {
		cand := &candidates[i]
		candAttr := cand.Attribution.HasCampaignData()
		candIdent := cand.Email != "" || cand.Phone != ""

		var result *StitchResult
		switch {
		case curAttr && candIdent && !curIdent && !candAttr:
			// current is the landing page, candidate holds the identity
			result, err = s.doStitch(ctx, contactID, cand.ContactID, now)
		case candAttr && curIdent && !curAttr && !candIdent:
			result, err = s.doStitch(ctx, cand.ContactID, contactID, now)
		default:
			continue
		}
		if err != nil {
			s.log.WarnwCtx(ctx, "IP auto-stitch failed", "error", err)
			return
		}
		if result.Status == StitchStatusStitched {
			metrics.ContactsStitchedTotal.WithLabelValues("ip").Inc()
		}
		return
	}
}

// ListContacts returns the dashboard list, newest first, merged children
// hidden unless requested.
func (s *Service) ListContacts(ctx context.Context, search string, includeMerged bool) ([]ContactWithStats, error) {
	contacts, err := s.repo.List(ctx, search, includeMerged)
	if err != nil {
		return nil, err
	}

	result := make([]ContactWithStats, 0, len(contacts))
	for _, c := range contacts {
		count, err := s.repo.CountVisits(ctx, c.ContactID)
		if err != nil {
			return nil, err
		}
		result = append(result, ContactWithStats{Contact: c, VisitCount: count})
	}
	return result, nil
}

func (s *Service) GetContactDetail(ctx context.Context, contactID string) (*ContactDetail, error) {
	c, err := s.repo.FindByContactID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.ErrNotFound.WithDetail("message", "contact not found")
	}

	visits, err := s.repo.VisitsByContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if visits == nil {
		visits = []PageVisit{}
	}
	return &ContactDetail{Contact: *c, Visits: visits}, nil
}

// DeleteContact removes the contact, its visits, and its entry in any
// parent's merged_children list.
func (s *Service) DeleteContact(ctx context.Context, contactID string) error {
	deleted, err := s.repo.DeleteByContactID(ctx, contactID)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.ErrNotFound.WithDetail("message", "contact not found")
	}
	if err := s.repo.DeleteVisitsByContact(ctx, contactID); err != nil {
		return err
	}
	s.log.InfowCtx(ctx, "Deleted contact", "contact_id", contactID)
	return nil
}

func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	totalContacts, err := s.repo.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	totalVisits, err := s.repo.CountAllVisits(ctx)
	if err != nil {
		return nil, err
	}
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	todayVisits, err := s.repo.CountVisitsSince(ctx, todayStart)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{
		TotalContacts: totalContacts,
		TotalVisits:   totalVisits,
		TodayVisits:   todayVisits,
	}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
