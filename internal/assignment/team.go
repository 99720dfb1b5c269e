package assignment

import (
	"context"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	"github.com/frahmantamala/meter-fleet/internal/meter"
	"github.com/frahmantamala/meter-fleet/internal/user"
)

// Team lists the engineers assigned to the manager, each with the meters this
// manager has handed to them.
func (s *Service) Team(ctx context.Context, p *auth.Principal) ([]*TeamMember, error) {
	if err := s.policy.Allow(p, auth.ActionTeamView, nil); err != nil {
		return nil, err
	}

	links, err := s.repo.ListUserAssignmentsByManager(ctx, p.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load team", err)
	}
	engineerIDs := make([]int64, len(links))
	for i, l := range links {
		engineerIDs[i] = l.EngineerID
	}
	engineers, err := s.repo.GetUsersByIDs(ctx, engineerIDs)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load team", err)
	}

	assignments, err := s.repo.ListMeterAssignmentsByManager(ctx, p.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter assignments", err)
	}
	meters, err := s.metersFor(ctx, assignments)
	if err != nil {
		return nil, err
	}

	byEngineer := make(map[int64][]*TeamMeter)
	for _, a := range assignments {
		if a.EngineerID == nil {
			continue
		}
		m, ok := meters[a.MeterID]
		if !ok {
			continue
		}
		byEngineer[*a.EngineerID] = append(byEngineer[*a.EngineerID], &TeamMeter{
			DeviceID: m.DeviceID,
			Location: m.Location,
			Status:   Status(a.Status),
		})
	}

	team := make([]*TeamMember, 0, len(engineers))
	for _, e := range engineers {
		assigned := byEngineer[e.ID]
		if assigned == nil {
			assigned = []*TeamMeter{}
		}
		team = append(team, &TeamMember{User: user.FromDataModel(e), Meters: assigned})
	}
	return team, nil
}

func (s *Service) ManagerMeters(ctx context.Context, p *auth.Principal) (*ManagerMeters, error) {
	if err := s.policy.Allow(p, auth.ActionTeamView, nil); err != nil {
		return nil, err
	}

	assignments, err := s.repo.ListMeterAssignmentsByManager(ctx, p.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter assignments", err)
	}
	meters, err := s.metersFor(ctx, assignments)
	if err != nil {
		return nil, err
	}

	return &ManagerMeters{
		Assignments: meterAssignmentsFromDataModels(assignments),
		Meters:      orderedMeters(assignments, meters),
	}, nil
}

// AssignMeter hands a meter the manager holds to an engineer on their team.
func (s *Service) AssignMeter(ctx context.Context, p *auth.Principal, dto AssignMeterDTO) (*AssignMeterResult, error) {
	return s.setMeterEngineer(ctx, p, dto, true)
}

func (s *Service) UnassignMeter(ctx context.Context, p *auth.Principal, dto AssignMeterDTO) (*AssignMeterResult, error) {
	return s.setMeterEngineer(ctx, p, dto, false)
}

func (s *Service) setMeterEngineer(ctx context.Context, p *auth.Principal, dto AssignMeterDTO, assign bool) (*AssignMeterResult, error) {
	if err := s.policy.Allow(p, auth.ActionTeamAssignMeter, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	m, err := s.repo.GetMeter(ctx, dto.MeterID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter", err)
	}
	engineer, err := s.repo.GetUser(ctx, dto.EngineerID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load user", err)
	}
	if m == nil || engineer == nil {
		return nil, internal.NewNotFoundError("Meter or engineer not found", internal.ErrCodeMeterNotFound)
	}

	link, err := s.repo.FindUserAssignment(ctx, p.ID, engineer.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load assignment", err)
	}
	if link == nil {
		return nil, internal.NewValidationError("Engineer is not assigned to the user", internal.ErrCodeEngineerNotInTeam)
	}

	held, err := s.repo.FindMeterAssignments(ctx, m.ID, p.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter assignment", err)
	}
	if len(held) == 0 {
		return nil, internal.NewValidationError("Meter is not assigned to the user", internal.ErrCodeMeterNotInScope)
	}

	var engineerID *int64
	if assign {
		engineerID = &engineer.ID
	}
	if err := s.repo.SetEngineer(ctx, m.ID, p.ID, engineerID); err != nil {
		return nil, internal.NewInternalError("Failed to update meter assignment", err)
	}

	updated, err := s.repo.GetMeterAssignment(ctx, held[0].ID)
	if err != nil || updated == nil {
		return nil, internal.NewInternalError("Failed to reload meter assignment", err)
	}

	s.logger.Info("meter engineer changed", "meter_id", m.ID, "manager_id", p.ID, "engineer_id", engineer.ID, "assigned", assign)
	return &AssignMeterResult{
		MeterAssignment: MeterAssignmentFromDataModel(updated),
		Meter:           meter.FromDataModel(m),
		Engineer:        user.FromDataModel(engineer),
	}, nil
}

func (s *Service) EngineerMeters(ctx context.Context, p *auth.Principal) (*EngineerMeters, error) {
	if err := s.policy.Allow(p, auth.ActionEngineerMeters, nil); err != nil {
		return nil, err
	}

	assignments, err := s.repo.ListMeterAssignmentsByEngineer(ctx, p.ID)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meter assignments", err)
	}
	if len(assignments) == 0 {
		return nil, internal.NewNotFoundError("No meters assigned to the engineer", internal.ErrCodeNoMetersAssigned)
	}
	meters, err := s.metersFor(ctx, assignments)
	if err != nil {
		return nil, err
	}

	return &EngineerMeters{
		MeterAssignments: meterAssignmentsFromDataModels(assignments),
		Meters:           orderedMeters(assignments, meters),
	}, nil
}

func (s *Service) metersFor(ctx context.Context, assignments []*assignmentDatamodel.MeterAssignment) (map[int64]*meterDatamodel.Meter, error) {
	ids := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.MeterID)
	}
	rows, err := s.repo.GetMetersByIDs(ctx, ids)
	if err != nil {
		return nil, internal.NewInternalError("Failed to load meters", err)
	}
	out := make(map[int64]*meterDatamodel.Meter, len(rows))
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}

// orderedMeters lists each meter once, in assignment order.
func orderedMeters(assignments []*assignmentDatamodel.MeterAssignment, meters map[int64]*meterDatamodel.Meter) []*meter.Meter {
	seen := make(map[int64]bool, len(meters))
	out := make([]*meter.Meter, 0, len(meters))
	for _, a := range assignments {
		m, ok := meters[a.MeterID]
		if !ok || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, meter.FromDataModel(m))
	}
	return out
}
