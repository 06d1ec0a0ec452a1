package core

import "pepplus/pkg/domain"

// EffectContext is handed to side effects. Tx is the transaction of the
// triggering write, so effect writes commit or roll back with it.
type EffectContext struct {
	Tx Transaction
	// Request holds the attributes exactly as the caller supplied them.
	Request Attributes
	Actor   string
	Today   domain.Date
}

// Effect is a named post-condition attached to one mutation of one entity type.
type Effect[PT domain.Record] struct {
	Name  string
	Apply func(ec EffectContext, rec PT) error
}

func runEffects[PT domain.Record](effects []Effect[PT], ec EffectContext, rec PT) error {
	for _, effect := range effects {
		if err := effect.Apply(ec, rec); err != nil {
			return err
		}
	}
	return nil
}

// sessionExecuted marks the parent session of a newly filed execution report
// as executed. Only the status changes; the session keeps its audit actor.
var sessionExecuted = Effect[*domain.Execution]{
	Name: "sessionExecuted",
	Apply: func(ec EffectContext, exec *domain.Execution) error {
		var session domain.Session
		if err := ec.Tx.CurrentByExternalID(domain.EntitySession, exec.SessionID, &session); err != nil {
			return err
		}
		session.Status = domain.SessionExecuted
		return ec.Tx.MutateInPlace(&session, session.AuditUserID)
	},
}

// referralConcluded stamps the completion date the first time a referral is set to CONC.
var referralConcluded = Effect[*domain.Referral]{
	Name: "referralConcluded",
	Apply: func(ec EffectContext, ref *domain.Referral) error {
		status, _ := ec.Request.String("status")
		if domain.ReferralStatus(status) != domain.ReferralConcluded || ref.CompletedOn != nil {
			return nil
		}
		today := ec.Today
		ref.CompletedOn = &today
		return nil
	},
}
