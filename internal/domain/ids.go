package domain

// SessionID identifies one onboarding wizard session hosted by this service.
type SessionID string

// AccountID is the remote service's identifier for the policy holder account ("accId").
// We model it as opaque: the remote service owns its format.
type AccountID string

// PolicyID and ContractID are assigned by the remote service once the vehicle is known.
type PolicyID string

type ContractID string

// ContactID and BrokerAccountID reference records owned by the remote service.
type ContactID string

type BrokerAccountID string

// VehicleID is the remote service's identifier for the insured vehicle.
type VehicleID string

// CoverageID is a key into the coverage catalog.
type CoverageID string
