package importer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/practicehub/practice-server/internal/models"
	"github.com/practicehub/practice-server/internal/storage"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	vatPattern   = regexp.MustCompile(`^GB\d{9,12}$`)
	regNoPattern = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
)

// ValidationResult is the accept/reject partition of one import file
type ValidationResult struct {
	Valid     bool                 `json:"valid"`
	TotalRows int                  `json:"totalRows"`
	ValidRows int                  `json:"validRows"`
	ErrorRows int                  `json:"errorRows"`
	Errors    []models.ImportError `json:"errors"`
	Validated []*models.Client     `json:"validatedData"`
}

// ValidateClientImport checks every row against the client schema, then
// against the tenant's existing data. Rejected rows never abort the run;
// each carries its own errors and the caller inserts only Validated.
//
// Row numbers in errors are file line numbers, so the first data row
// after the header reports as row 2.
func ValidateClientImport(ctx context.Context, ts storage.TenantStore, rows []Row) (*ValidationResult, error) {
	result := &ValidationResult{
		TotalRows: len(rows),
		Errors:    []models.ImportError{},
		Validated: []*models.Client{},
	}

	// Track values seen earlier in this file so two rows cannot both
	// slip past the database duplicate check.
	seenEmails := map[string]bool{}
	seenRegNos := map[string]bool{}

	for i, row := range rows {
		rowNum := i + 2

		client, rowErrors, err := validateRow(ctx, ts, row, rowNum, seenEmails, seenRegNos)
		if err != nil {
			return nil, err
		}

		if len(rowErrors) > 0 {
			result.ErrorRows++
			result.Errors = append(result.Errors, rowErrors...)
			continue
		}

		if client.Email != "" {
			seenEmails[client.Email] = true
		}
		if client.RegistrationNumber != "" {
			seenRegNos[client.RegistrationNumber] = true
		}

		result.ValidRows++
		result.Validated = append(result.Validated, client)
	}

	result.Valid = result.ErrorRows == 0
	return result, nil
}

// validateRow runs schema checks, then duplicate and reference checks.
// The returned error is for storage failures only; row problems come
// back in the slice.
func validateRow(ctx context.Context, ts storage.TenantStore, row Row, rowNum int, seenEmails, seenRegNos map[string]bool) (*models.Client, []models.ImportError, error) {
	var rowErrors []models.ImportError

	reject := func(field, displayField, message, value string) {
		rowErrors = append(rowErrors, models.ImportError{
			Row:     rowNum,
			Field:   field,
			Message: fmt.Sprintf("Row %d: %s: %s", rowNum, displayField, message),
			Value:   value,
		})
	}

	client := &models.Client{
		Name:               row["company_name"],
		Type:               row["client_type"],
		Status:             row["status"],
		Email:              strings.ToLower(row["email"]),
		Phone:              row["phone"],
		VATNumber:          strings.ToUpper(strings.ReplaceAll(row["vat_number"], " ", "")),
		RegistrationNumber: strings.ToUpper(row["registration_number"]),
		AddressLine1:       row["address_line1"],
		City:               row["city"],
		Postcode:           row["postcode"],
		Country:            row["country"],
	}

	// Schema checks
	if client.Name == "" {
		reject("company_name", "Company name", "is required", "")
	}

	if client.Email != "" && !emailPattern.MatchString(client.Email) {
		reject("email", "Email", "is not a valid email address", client.Email)
	}

	if client.VATNumber != "" && !vatPattern.MatchString(client.VATNumber) {
		reject("vat_number", "VAT number", "must be GB followed by 9 to 12 digits", client.VATNumber)
	}

	if client.RegistrationNumber != "" && !regNoPattern.MatchString(client.RegistrationNumber) {
		reject("registration_number", "Registration number", "must be an 8 character Companies House number", client.RegistrationNumber)
	}

	if client.Type == "" {
		client.Type = models.ClientTypeLimitedCompany
	} else if !models.ValidClientType(client.Type) {
		reject("client_type", "Client type", "is not a recognised type", client.Type)
	}

	if client.Status == "" {
		client.Status = models.ClientStatusActive
	} else if !models.ValidClientStatus(client.Status) {
		reject("status", "Status", "is not a recognised status", client.Status)
	}

	if client.Country == "" {
		client.Country = "United Kingdom"
	}

	if len(rowErrors) > 0 {
		return nil, rowErrors, nil
	}

	// Duplicate checks against the tenant's existing clients
	if client.Email != "" {
		if seenEmails[client.Email] {
			reject("email", "Email", "duplicates an earlier row in this file", client.Email)
		} else {
			_, err := ts.GetClientByEmail(ctx, client.Email)
			if err == nil {
				reject("email", "Email", "duplicate: a client with this email already exists", client.Email)
			} else if !errors.Is(err, storage.ErrNotFound) {
				return nil, nil, err
			}
		}
	}

	if client.RegistrationNumber != "" {
		if seenRegNos[client.RegistrationNumber] {
			reject("registration_number", "Registration number", "duplicates an earlier row in this file", client.RegistrationNumber)
		} else {
			_, err := ts.GetClientByRegistrationNumber(ctx, client.RegistrationNumber)
			if err == nil {
				reject("registration_number", "Registration number", "duplicate: a client with this registration number already exists", client.RegistrationNumber)
			} else if !errors.Is(err, storage.ErrNotFound) {
				return nil, nil, err
			}
		}
	}

	// Manager reference check
	if managerEmail := row["client_manager_email"]; managerEmail != "" {
		user, err := ts.GetTenantUserByEmail(ctx, managerEmail)
		if errors.Is(err, storage.ErrNotFound) {
			reject("client_manager_email", "Client manager email", "does not match any user in your practice", managerEmail)
		} else if err != nil {
			return nil, nil, err
		} else {
			client.ManagerID = &user.ID
		}
	}

	if len(rowErrors) > 0 {
		return nil, rowErrors, nil
	}
	return client, nil, nil
}
