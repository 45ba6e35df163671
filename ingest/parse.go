package ingest

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kqwyf/dialogtrace/model"
)

// resolve walks the alias list for field and returns the first gjson.Result
// that exists in raw.
func resolve(raw string, aliases AliasTable, field string) gjson.Result {
	for _, path := range aliases[field] {
		if r := gjson.Get(raw, path); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// resolveIn is like resolve but scoped under a parent gjson.Result (used for
// beginCond array elements, whose "type"/"param" share key names with other
// objects in the document).
func resolveIn(parent gjson.Result, aliases AliasTable, field string) gjson.Result {
	for _, path := range aliases[field] {
		if r := parent.Get(path); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// ParseTalk resolves a raw Talk JSON record into a model.Talk. provenance
// and trusted are supplied by the external ingestion layer; provenance is
// kept for diagnostics only. aliases is typically DefaultAliasTable()
// merged with any deployment-specific recovery aliases.
func ParseTalk(raw string, aliases AliasTable, provenance string, trusted bool) (model.Talk, error) {
	idR := resolve(raw, aliases, FieldTalkID)
	if !idR.Exists() {
		return model.Talk{}, fmt.Errorf("ingest.ParseTalk: %w (provenance %q)", ErrNoID, provenance)
	}

	t := model.Talk{
		ID:         int(idR.Int()),
		InitDialog: model.NoDialog,
		Trusted:    trusted,
		Provenance: provenance,
	}

	if npc := resolve(raw, aliases, FieldTalkNPCIDs); npc.Exists() {
		npc.ForEach(func(_, v gjson.Result) bool {
			t.NPCIDs = append(t.NPCIDs, int(v.Int()))
			return true
		})
	}

	if init := resolve(raw, aliases, FieldTalkInitDialog); init.Exists() {
		t.InitDialog = int(init.Int())
	}

	if next := resolve(raw, aliases, FieldTalkNextTalks); next.Exists() {
		next.ForEach(func(_, v gjson.Result) bool {
			t.NextTalks = append(t.NextTalks, int(v.Int()))
			return true
		})
	}

	if comb := resolve(raw, aliases, FieldTalkCondComb); comb.Exists() {
		if strings.EqualFold(comb.String(), "OR") {
			t.BeginCondComb = model.CombOR
		}
	}

	if conds := resolve(raw, aliases, FieldTalkConditions); conds.Exists() {
		conds.ForEach(func(_, c gjson.Result) bool {
			stateR := resolveIn(c, aliases, FieldTalkCondType)
			paramR := resolveIn(c, aliases, FieldTalkCondParam)
			if !stateR.Exists() || !paramR.Exists() {
				return true
			}
			state, ok := parseState(stateR.String())
			if !ok {
				return true
			}
			paramR.ForEach(func(_, p gjson.Result) bool {
				t.BeginConditions = append(t.BeginConditions, model.BeginCondition{
					SubQuestID: int(p.Int()),
					State:      state,
				})
				return true
			})
			return true
		})
	}

	return t, nil
}

func parseState(s string) (model.SubquestState, bool) {
	switch strings.ToLower(s) {
	case "in_progress", "in-progress", "inprogress":
		return model.StateInProgress, true
	case "finished", "finish":
		return model.StateFinished, true
	case "failed", "fail":
		return model.StateFailed, true
	default:
		return 0, false
	}
}

// ParseDialog resolves a raw Dialog JSON record into a model.Dialog,
// mapping the recognized role types: TALK_ROLE_PLAYER
// -> 0, TALK_ROLE_*_BLACK_SCREEN -> -2, TALK_ROLE_MATE_AVATAR -> -3,
// TALK_ROLE_NPC/TALK_ROLE_GADGET -> positive npc id, and
// talkShowType == TALK_SHOW_FORCE_SELECT overriding the role to 0.
func ParseDialog(raw string, aliases AliasTable, provenance string, trusted bool) (model.Dialog, error) {
	idR := resolve(raw, aliases, FieldDialogID)
	if !idR.Exists() {
		return model.Dialog{}, fmt.Errorf("ingest.ParseDialog: %w (provenance %q)", ErrNoID, provenance)
	}

	d := model.Dialog{
		ID:           int(idR.Int()),
		TalkID:       model.NoDialog,
		Role:         model.RoleUnknown,
		ContentHash:  resolve(raw, aliases, FieldDialogContentHash).String(),
		RoleNameHash: resolve(raw, aliases, FieldDialogRoleHash).String(),
		Trusted:      trusted,
		Provenance:   provenance,
	}

	roleR := resolve(raw, aliases, FieldDialogTalkRole)
	if roleR.Exists() {
		typ := resolveIn(roleR, aliases, FieldDialogRoleType).String()
		id := int(resolveIn(roleR, aliases, FieldDialogRoleID).Int())
		d.Role = resolveRole(typ, id)
	}

	if show := resolve(raw, aliases, FieldDialogShowType); show.Exists() {
		if strings.EqualFold(show.String(), "TALK_SHOW_FORCE_SELECT") {
			d.Role = model.RolePlayer
		}
	}

	if next := resolve(raw, aliases, FieldDialogNextDialogs); next.Exists() {
		next.ForEach(func(_, v gjson.Result) bool {
			d.NextDialogs = append(d.NextDialogs, int(v.Int()))
			return true
		})
	}

	return d, nil
}

// resolveRole maps a raw role-type string (and its accompanying id, used
// only for the NPC/GADGET case) to the integer role tag of model.Dialog.
func resolveRole(typ string, id int) int {
	switch {
	case typ == "":
		return model.RoleUnknown
	case typ == "TALK_ROLE_PLAYER":
		return model.RolePlayer
	case strings.HasSuffix(typ, "_BLACK_SCREEN"):
		return model.RoleNarrator
	case typ == "TALK_ROLE_MATE_AVATAR":
		return model.RoleMate
	case typ == "TALK_ROLE_NPC" || typ == "TALK_ROLE_GADGET":
		if id > 0 {
			return id
		}
		return model.RoleUnknown
	default:
		return model.RoleUnknown
	}
}
