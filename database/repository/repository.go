package repository

import (
	agentRepo "tourly/database/repository/agent"
	bookingRepo "tourly/database/repository/booking"
)

// Re-export the BookingRepository interface and constructors.
type BookingRepository = bookingRepo.BookingRepository

type ScopeQuery = bookingRepo.ScopeQuery

type Mutation = bookingRepo.Mutation

var NewMongoBookingRepo = bookingRepo.NewMongoBookingRepo

var NewMemoryBookingRepo = bookingRepo.NewMemoryBookingRepo

// Re-export the AgentDirectory interface and constructor.
type AgentDirectory = agentRepo.AgentDirectory

var NewMongoAgentDirectory = agentRepo.NewMongoAgentDirectory
