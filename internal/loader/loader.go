// Package loader reads the external JSON document shapes (SPEC_FULL.md
// §6) from disk and converts them into internal/model values. This is the
// "data loading from JSON files" collaborator spec.md §1 explicitly keeps
// out of the core's scope.
package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dsi-mfg/reflow/internal/model"
)

// Bundle pairs loaded work centers and work orders, with every work
// order's WorkCenterID already confirmed to resolve.
type Bundle struct {
	WorkCenters []model.WorkCenter
	WorkOrders  []model.WorkOrder
}

type workCenterDoc struct {
	DocID   string `json:"docId"`
	DocType string `json:"docType"`
	Data    struct {
		Name               string                 `json:"name"`
		Shifts             []shiftDoc             `json:"shifts"`
		MaintenanceWindows []maintenanceWindowDoc `json:"maintenanceWindows"`
	} `json:"data"`
}

type shiftDoc struct {
	DayOfWeek int `json:"dayOfWeek"`
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

type maintenanceWindowDoc struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason,omitempty"`
}

type workOrderDoc struct {
	DocID   string `json:"docId"`
	DocType string `json:"docType"`
	Data    struct {
		WorkOrderNumber       string   `json:"workOrderNumber"`
		ManufacturingOrderID  string   `json:"manufacturingOrderId"`
		WorkCenterID          string   `json:"workCenterId"`
		StartDate             string   `json:"startDate"`
		EndDate               string   `json:"endDate"`
		DurationMinutes       int      `json:"durationMinutes"`
		IsMaintenance         bool     `json:"isMaintenance"`
		DependsOnWorkOrderIDs []string `json:"dependsOnWorkOrderIds"`
	} `json:"data"`
}

// LoadWorkCenters reads a JSON array of workCenter documents from a file.
func LoadWorkCenters(path string) ([]model.WorkCenter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading work centers from %s: %w", path, err)
	}
	centers, err := DecodeWorkCenters(raw)
	if err != nil {
		return nil, fmt.Errorf("loader: parsing work centers from %s: %w", path, err)
	}
	return centers, nil
}

// DecodeWorkCenters parses a JSON array of workCenter documents already
// held in memory, e.g. an HTTP request body.
func DecodeWorkCenters(raw []byte) ([]model.WorkCenter, error) {
	var docs []workCenterDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}

	centers := make([]model.WorkCenter, 0, len(docs))
	for _, d := range docs {
		if d.DocType != "" && d.DocType != "workCenter" {
			return nil, fmt.Errorf("document %s has docType %q, want %q", d.DocID, d.DocType, "workCenter")
		}

		wc := model.WorkCenter{ID: d.DocID, Name: d.Data.Name}
		for _, s := range d.Data.Shifts {
			wc.Shifts = append(wc.Shifts, model.Shift{
				DayOfWeek: s.DayOfWeek,
				StartHour: s.StartHour,
				EndHour:   s.EndHour,
			})
		}
		for _, w := range d.Data.MaintenanceWindows {
			start, err := model.ParseInstant(w.StartDate)
			if err != nil {
				return nil, fmt.Errorf("work center %s maintenance window: %w", d.DocID, err)
			}
			end, err := model.ParseInstant(w.EndDate)
			if err != nil {
				return nil, fmt.Errorf("work center %s maintenance window: %w", d.DocID, err)
			}
			wc.MaintenanceWindows = append(wc.MaintenanceWindows, model.MaintenanceWindow{
				Start:  start,
				End:    end,
				Reason: w.Reason,
			})
		}
		centers = append(centers, wc)
	}
	return centers, nil
}

// LoadWorkOrders reads a JSON array of workOrder documents from a file.
func LoadWorkOrders(path string) ([]model.WorkOrder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading work orders from %s: %w", path, err)
	}
	orders, err := DecodeWorkOrders(raw)
	if err != nil {
		return nil, fmt.Errorf("loader: parsing work orders from %s: %w", path, err)
	}
	return orders, nil
}

// DecodeWorkOrders parses a JSON array of workOrder documents already held
// in memory, e.g. an HTTP request body.
func DecodeWorkOrders(raw []byte) ([]model.WorkOrder, error) {
	var docs []workOrderDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}

	orders := make([]model.WorkOrder, 0, len(docs))
	for _, d := range docs {
		if d.DocType != "" && d.DocType != "workOrder" {
			return nil, fmt.Errorf("document %s has docType %q, want %q", d.DocID, d.DocType, "workOrder")
		}

		start, err := model.ParseInstant(d.Data.StartDate)
		if err != nil {
			return nil, fmt.Errorf("work order %s start: %w", d.DocID, err)
		}
		end, err := model.ParseInstant(d.Data.EndDate)
		if err != nil {
			return nil, fmt.Errorf("work order %s end: %w", d.DocID, err)
		}

		orders = append(orders, model.WorkOrder{
			ID:              d.DocID,
			Number:          d.Data.WorkOrderNumber,
			WorkCenterID:    d.Data.WorkCenterID,
			Start:           start,
			End:             end,
			DurationMinutes: d.Data.DurationMinutes,
			IsMaintenance:   d.Data.IsMaintenance,
			DependsOn:       d.Data.DependsOnWorkOrderIDs,
		})
	}
	return orders, nil
}

// DecodeBundle parses work-center and work-order JSON bodies together and
// cross-checks every order's WorkCenterID resolves, the same guarantee
// LoadBundle gives file-backed input.
func DecodeBundle(centersRaw, ordersRaw []byte) (Bundle, error) {
	centers, err := DecodeWorkCenters(centersRaw)
	if err != nil {
		return Bundle{}, fmt.Errorf("loader: parsing work centers: %w", err)
	}
	orders, err := DecodeWorkOrders(ordersRaw)
	if err != nil {
		return Bundle{}, fmt.Errorf("loader: parsing work orders: %w", err)
	}

	known := make(map[string]bool, len(centers))
	for _, wc := range centers {
		known[wc.ID] = true
	}
	for _, o := range orders {
		if !known[o.WorkCenterID] {
			return Bundle{}, fmt.Errorf("loader: work order %s (%s) references work center %q, not found in request body", o.ID, o.Number, o.WorkCenterID)
		}
	}

	return Bundle{WorkCenters: centers, WorkOrders: orders}, nil
}

// LoadBundle loads both documents and checks that every work order's
// WorkCenterID resolves to a loaded work center, so a missing machine is
// reported as a loader error (with the offending file path) rather than
// surfacing later as the core's own UnknownMachineError.
func LoadBundle(centersPath, ordersPath string) (Bundle, error) {
	centers, err := LoadWorkCenters(centersPath)
	if err != nil {
		return Bundle{}, err
	}
	orders, err := LoadWorkOrders(ordersPath)
	if err != nil {
		return Bundle{}, err
	}

	known := make(map[string]bool, len(centers))
	for _, wc := range centers {
		known[wc.ID] = true
	}
	for _, o := range orders {
		if !known[o.WorkCenterID] {
			return Bundle{}, fmt.Errorf("loader: work order %s (%s) references work center %q, not found in %s", o.ID, o.Number, o.WorkCenterID, centersPath)
		}
	}

	return Bundle{WorkCenters: centers, WorkOrders: orders}, nil
}
