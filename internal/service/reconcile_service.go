package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/internal/repository"
)

// WritePolicy decides which classified characters are written back.
type WritePolicy string

const (
	// WriteAlways rewrites every fetched character.
	WriteAlways WritePolicy = "always"
	// WriteChangedOnly skips characters classified unchanged.
	WriteChangedOnly WritePolicy = "changed-only"
)

func ParseWritePolicy(s string) (WritePolicy, error) {
	switch p := WritePolicy(s); p {
	case WriteAlways, WriteChangedOnly:
		return p, nil
	case "":
		return WriteAlways, nil
	}
	return "", fmt.Errorf("unknown write policy %q", s)
}

type ReconcileService struct {
	characters repository.CharacterRepository
	policy     WritePolicy
	metrics    *metrics.Metrics
}

func NewReconcileService(characters repository.CharacterRepository, policy WritePolicy, m *metrics.Metrics) *ReconcileService {
	if policy == "" {
		policy = WriteAlways
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &ReconcileService{characters: characters, policy: policy, metrics: m}
}

// Reconcile classifies every fetched character against storage and then
// writes them according to the write policy. Each character is written in
// its own transaction; a failure stops the batch and leaves earlier
// characters written.
func (s *ReconcileService) Reconcile(ctx context.Context, playerID string, fetched []*domain.CharacterSnapshot) (*domain.ReconcileResult, error) {
	if len(fetched) == 0 {
		return nil, domain.ErrEmptyRoleList
	}

	ctx, span := tracer.Start(ctx, "ReconcileService.Reconcile", trace.WithAttributes(
		attribute.String("player_id", playerID),
		attribute.Int("characters", len(fetched)),
	))
	defer span.End()

	kinds := make([]domain.ChangeKind, len(fetched))
	result := &domain.ReconcileResult{ChangedIDs: []int{}, UnchangedIDs: []int{}}
	for i, snap := range fetched {
		kind, err := s.Classify(ctx, playerID, snap)
		if err != nil {
			recordError(span, err, "classify failed")
			return nil, err
		}
		kinds[i] = kind
		s.metrics.ReconcileTotal.WithLabelValues(kind.String()).Inc()
		if kind == domain.Changed {
			result.ChangedIDs = append(result.ChangedIDs, snap.CharacterID())
		} else {
			result.UnchangedIDs = append(result.UnchangedIDs, snap.CharacterID())
		}
	}

	for i, snap := range fetched {
		if s.policy == WriteChangedOnly && kinds[i] == domain.Unchanged {
			continue
		}
		if err := s.Write(ctx, playerID, snap); err != nil {
			recordError(span, err, "write failed")
			return nil, err
		}
	}

	sort.Ints(result.ChangedIDs)
	sort.Ints(result.UnchangedIDs)

	log.Info().
		Str("component", "reconcile").
		Str("player_id", playerID).
		Ints("changed", result.ChangedIDs).
		Int("unchanged", len(result.UnchangedIDs)).
		Msg("characters reconciled")
	return result, nil
}

// Classify compares one snapshot with the persisted graph. Checks run from
// the cheapest to the most expensive and stop at the first difference.
func (s *ReconcileService) Classify(ctx context.Context, playerID string, snap *domain.CharacterSnapshot) (domain.ChangeKind, error) {
	characterID := snap.CharacterID()
	wrap := func(op string, err error) error {
		return fmt.Errorf("failed to %s of character %d for player %s: %w", op, characterID, playerID, err)
	}

	persisted, err := s.characters.GetCharacter(ctx, playerID, characterID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Changed, nil
	}
	if err != nil {
		return domain.Unchanged, wrap("load character", err)
	}

	if persisted.Level != snap.Level ||
		persisted.Breach != snap.Breach ||
		persisted.ChainUnlockCount != snap.ChainUnlockCount {
		return domain.Changed, nil
	}

	skills, err := s.characters.SkillLevels(ctx, persisted.ID)
	if err != nil {
		return domain.Unchanged, wrap("load skills", err)
	}
	if skillsChanged(skills, snap.Skills) {
		return domain.Changed, nil
	}

	chains, err := s.characters.UnlockedChainNames(ctx, persisted.ID)
	if err != nil {
		return domain.Unchanged, wrap("load chains", err)
	}
	if chainsChanged(chains, snap.Chains) {
		return domain.Changed, nil
	}

	weapon, err := s.characters.GetWeapon(ctx, persisted.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Unchanged, wrap("load weapon", err)
	}
	if err != nil {
		weapon = nil
	}
	if weaponChanged(weapon, snap.Weapon) {
		return domain.Changed, nil
	}

	relics, err := s.characters.ListRelics(ctx, persisted.ID)
	if err != nil {
		return domain.Unchanged, wrap("load relics", err)
	}
	if relicsChanged(relics, snap.Relics) {
		return domain.Changed, nil
	}

	return domain.Unchanged, nil
}

// uniqueSkills keeps the first entry of each skill id. Classify and Write
// both read skills through it so a repeated id compares the stored level.
func uniqueSkills(skills []domain.SkillSnapshot) []domain.SkillSnapshot {
	seen := make(map[int]struct{}, len(skills))
	out := make([]domain.SkillSnapshot, 0, len(skills))
	for _, s := range skills {
		if _, dup := seen[s.Skill.SkillID]; dup {
			continue
		}
		seen[s.Skill.SkillID] = struct{}{}
		out = append(out, s)
	}
	return out
}

type chainKey struct {
	name  string
	order int
}

// uniqueChains keeps the first entry of each chain, keyed the way chain
// catalog rows are.
func uniqueChains(chains []domain.ChainSnapshot) []domain.ChainSnapshot {
	seen := make(map[chainKey]struct{}, len(chains))
	out := make([]domain.ChainSnapshot, 0, len(chains))
	for _, c := range chains {
		key := chainKey{name: c.Name, order: c.Order}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func skillsChanged(persisted map[int]int, fetched []domain.SkillSnapshot) bool {
	current := make(map[int]int, len(fetched))
	for _, s := range uniqueSkills(fetched) {
		current[s.Skill.SkillID] = s.Level
	}
	if len(current) != len(persisted) {
		return true
	}
	for id, level := range current {
		old, ok := persisted[id]
		if !ok || old != level {
			return true
		}
	}
	return false
}

func chainsChanged(persisted []string, fetched []domain.ChainSnapshot) bool {
	old := make(map[string]struct{}, len(persisted))
	for _, name := range persisted {
		old[name] = struct{}{}
	}
	current := make(map[string]struct{}, len(fetched))
	for _, c := range uniqueChains(fetched) {
		if c.Unlocked && c.Name != "" {
			current[c.Name] = struct{}{}
		}
	}
	if len(old) != len(current) {
		return true
	}
	for name := range current {
		if _, ok := old[name]; !ok {
			return true
		}
	}
	return false
}

func weaponChanged(persisted *domain.Weapon, fetched *domain.WeaponSnapshot) bool {
	switch {
	case persisted == nil && fetched == nil:
		return false
	case persisted == nil || fetched == nil:
		return true
	}
	if persisted.Level != fetched.Level ||
		persisted.Breach != fetched.Breach ||
		persisted.ResonanceLevel != fetched.ResonanceLevel {
		return true
	}
	return persisted.WeaponID != fetched.Detail.WeaponID
}

// relicsChanged compares the sets of fetter groups, then the level and
// quality of the first relic of every shared group.
func relicsChanged(persisted []*domain.RelicItem, fetched []*domain.RelicSnapshot) bool {
	old := make(map[int]*domain.RelicItem, len(persisted))
	for _, r := range persisted {
		if _, ok := old[r.GroupID]; !ok {
			old[r.GroupID] = r
		}
	}
	current := make(map[int]*domain.RelicSnapshot, len(fetched))
	for _, r := range fetched {
		if r == nil {
			continue
		}
		if _, ok := current[r.Fetter.GroupID]; !ok {
			current[r.Fetter.GroupID] = r
		}
	}

	if len(old) != len(current) {
		return true
	}
	for group, r := range current {
		p, ok := old[group]
		if !ok {
			return true
		}
		if p.Level != r.Level || p.Quality != r.Quality {
			return true
		}
	}
	return false
}

// Write replaces the stored graph of one character in one transaction.
func (s *ReconcileService) Write(ctx context.Context, playerID string, snap *domain.CharacterSnapshot) error {
	err := s.characters.WithinTx(ctx, func(tx repository.CharacterTx) error {
		base := snap.Base
		if err := tx.EnsureCharacterBase(ctx, &base); err != nil {
			return err
		}
		rowID, err := tx.UpsertCharacter(ctx, &domain.Character{
			PlayerID:         playerID,
			CharacterID:      snap.CharacterID(),
			Level:            snap.Level,
			Breach:           snap.Breach,
			ChainUnlockCount: snap.ChainUnlockCount,
		})
		if err != nil {
			return err
		}

		if err := writeSkills(ctx, tx, rowID, snap.Skills); err != nil {
			return err
		}
		if err := writeChains(ctx, tx, rowID, snap.CharacterID(), snap.Chains); err != nil {
			return err
		}
		if err := writeWeapon(ctx, tx, rowID, snap.Weapon); err != nil {
			return err
		}
		return writeRelics(ctx, tx, rowID, snap.Relics)
	})
	if err != nil {
		return fmt.Errorf("failed to write character %d for player %s: %w", snap.CharacterID(), playerID, err)
	}
	return nil
}

func writeSkills(ctx context.Context, tx repository.CharacterTx, rowID int64, skills []domain.SkillSnapshot) error {
	if err := tx.DeleteSkills(ctx, rowID); err != nil {
		return err
	}
	for _, s := range uniqueSkills(skills) {
		skill := s.Skill
		if err := tx.EnsureSkill(ctx, &skill); err != nil {
			return err
		}
		if err := tx.InsertSkill(ctx, rowID, skill.SkillID, s.Level); err != nil {
			return err
		}
	}
	return nil
}

func writeChains(ctx context.Context, tx repository.CharacterTx, rowID int64, characterID int, chains []domain.ChainSnapshot) error {
	if err := tx.DeleteChains(ctx, rowID); err != nil {
		return err
	}
	for _, c := range uniqueChains(chains) {
		chainID, err := tx.EnsureChain(ctx, &domain.Chain{
			CharacterID: characterID,
			Name:        c.Name,
			Order:       c.Order,
			Description: c.Description,
			IconURL:     c.IconURL,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertChain(ctx, rowID, chainID, c.Unlocked); err != nil {
			return err
		}
	}
	return nil
}

func writeWeapon(ctx context.Context, tx repository.CharacterTx, rowID int64, w *domain.WeaponSnapshot) error {
	if err := tx.DeleteWeapon(ctx, rowID); err != nil {
		return err
	}
	if w == nil {
		return nil
	}
	detail := w.Detail
	if err := tx.EnsureWeaponDetail(ctx, &detail); err != nil {
		return err
	}
	return tx.InsertWeapon(ctx, &domain.Weapon{
		CharacterRowID: rowID,
		WeaponID:       detail.WeaponID,
		Level:          w.Level,
		Breach:         w.Breach,
		ResonanceLevel: w.ResonanceLevel,
	})
}

func writeRelics(ctx context.Context, tx repository.CharacterTx, rowID int64, relics []*domain.RelicSnapshot) error {
	if err := tx.DeleteRelics(ctx, rowID); err != nil {
		return err
	}
	written := 0
	for _, r := range relics {
		if r == nil {
			continue
		}
		if written == domain.MaxRelics {
			break
		}
		written++

		fetter := r.Fetter
		fetterID, err := tx.EnsureFetter(ctx, &fetter)
		if err != nil {
			return err
		}
		relicID, err := tx.InsertRelic(ctx, &domain.RelicItem{
			CharacterRowID: rowID,
			FetterID:       fetterID,
			Cost:           r.Cost,
			Quality:        r.Quality,
			Level:          r.Level,
		})
		if err != nil {
			return err
		}
		if err := writeStats(ctx, tx, relicID, r.MainStats, true); err != nil {
			return err
		}
		if err := writeStats(ctx, tx, relicID, r.SubStats, false); err != nil {
			return err
		}
	}
	return nil
}

// writeStats keeps only entries the API marks valid.
func writeStats(ctx context.Context, tx repository.CharacterTx, relicID int64, stats []domain.StatEntry, isMain bool) error {
	for _, st := range stats {
		if !st.Valid {
			continue
		}
		propID, err := tx.EnsureProp(ctx, st.Name, st.Value, st.IconURL)
		if err != nil {
			return err
		}
		if err := tx.InsertRelicStat(ctx, relicID, propID, isMain); err != nil {
			return err
		}
	}
	return nil
}
