package dto

// ReconcileRequest body para POST /api/admin/reconcile. SKUIDs vacío concilia todo el catálogo.
type ReconcileRequest struct {
	SKUIDs []string `json:"sku_ids" validate:"omitempty,dive,required"`
	DryRun bool     `json:"dry_run"`
}
