package main

import "hospital-queue/internal/models"

// defaultServices seeds the in-memory catalog when no database is configured.
var defaultServices = []models.Service{
	{ID: 1, Name: "General Practice", Department: "Outpatient", BaselineMinutes: 20, IsActive: true},
	{ID: 2, Name: "Pediatrics", Department: "Outpatient", BaselineMinutes: 25, IsActive: true},
	{ID: 3, Name: "Laboratory", Department: "Diagnostics", BaselineMinutes: 15, IsActive: true, OpensAt: "07:00", ClosesAt: "21:00"},
	{ID: 4, Name: "Radiology", Department: "Diagnostics", BaselineMinutes: 30, IsActive: true},
	{ID: 5, Name: "Pharmacy", Department: "Pharmacy", BaselineMinutes: 10, IsActive: true},
	{ID: 6, Name: "Emergency Triage", Department: "Emergency", BaselineMinutes: 5, IsActive: true},
}
