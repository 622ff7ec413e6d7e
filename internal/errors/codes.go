// Package errors provides structured domain error handling.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Client errors
	CodeClientNameEmpty     Code = "CLIENT_NAME_EMPTY"
	CodeClientDiscountRange Code = "CLIENT_DISCOUNT_RANGE"
	CodeClientPhoneInvalid  Code = "CLIENT_PHONE_INVALID"

	// Supplier errors
	CodeSupplierNameEmpty Code = "SUPPLIER_NAME_EMPTY"

	// Product errors
	CodeProductSKUEmpty          Code = "PRODUCT_SKU_EMPTY"
	CodeProductNameEmpty         Code = "PRODUCT_NAME_EMPTY"
	CodeProductInvalidCategory   Code = "PRODUCT_INVALID_CATEGORY"
	CodeProductInvalidMetal      Code = "PRODUCT_INVALID_METAL"
	CodeProductNegativeAmount    Code = "PRODUCT_NEGATIVE_AMOUNT"
	CodeProductNegativeWeight    Code = "PRODUCT_NEGATIVE_WEIGHT"
	CodeProductInsufficientStock Code = "PRODUCT_INSUFFICIENT_STOCK"
	CodeProductNotSellable       Code = "PRODUCT_NOT_SELLABLE"

	// Purchase errors
	CodePurchaseSupplierEmpty Code = "PURCHASE_SUPPLIER_EMPTY"
	CodePurchaseNoLines       Code = "PURCHASE_NO_LINES"
	CodePurchaseInvalidLine   Code = "PURCHASE_INVALID_LINE"
	CodePurchaseNotDraft      Code = "PURCHASE_NOT_DRAFT"

	// Sale errors
	CodeSaleNoLines           Code = "SALE_NO_LINES"
	CodeSaleInvalidLine       Code = "SALE_INVALID_LINE"
	CodeSaleDiscountRange     Code = "SALE_DISCOUNT_RANGE"
	CodeSaleCancelled         Code = "SALE_CANCELLED"
	CodeSaleHasPayments       Code = "SALE_HAS_PAYMENTS"
	CodeSaleNumberInvalid     Code = "SALE_NUMBER_INVALID"
	CodeSaleShipmentExists    Code = "SALE_SHIPMENT_EXISTS"
	CodeSalePhotoEmpty        Code = "SALE_PHOTO_EMPTY"
	CodeSalePhotoTooLarge     Code = "SALE_PHOTO_TOO_LARGE"
	CodeSalePhotoBadImageType Code = "SALE_PHOTO_BAD_IMAGE_TYPE"

	// Payment errors
	CodePaymentNotPositive   Code = "PAYMENT_NOT_POSITIVE"
	CodePaymentInvalidMethod Code = "PAYMENT_INVALID_METHOD"
	CodePaymentTargetMissing Code = "PAYMENT_TARGET_MISSING"

	// Repair errors
	CodeRepairClientEmpty       Code = "REPAIR_CLIENT_EMPTY"
	CodeRepairItemEmpty         Code = "REPAIR_ITEM_EMPTY"
	CodeRepairInvalidTransition Code = "REPAIR_INVALID_STATUS_TRANSITION"
	CodeRepairPriceUnset        Code = "REPAIR_PRICE_UNSET"
	CodeRepairUnpaid            Code = "REPAIR_UNPAID"

	// Deposit errors
	CodeDepositNotPositive Code = "DEPOSIT_NOT_POSITIVE"
	CodeDepositNotHeld     Code = "DEPOSIT_NOT_HELD"
	CodeDepositClientEmpty Code = "DEPOSIT_CLIENT_EMPTY"

	// Shipment errors
	CodeShipmentTrackingEmpty Code = "SHIPMENT_TRACKING_EMPTY"
	CodeShipmentTerminal      Code = "SHIPMENT_TERMINAL"

	// Tracking errors
	CodeTrackingNotFound     Code = "TRACKING_NOT_FOUND"
	CodeCourierUnavailable   Code = "COURIER_UNAVAILABLE"
	CodeCourierMarkupChanged Code = "COURIER_MARKUP_CHANGED"
	CodeTrackerNotConfigured Code = "TRACKER_NOT_CONFIGURED"

	// Staff and auth errors
	CodeStaffUsernameEmpty Code = "STAFF_USERNAME_EMPTY"
	CodeStaffPasswordWeak  Code = "STAFF_PASSWORD_WEAK"
	CodeStaffInactive      Code = "STAFF_INACTIVE"
	CodeAuthInvalidLogin   Code = "AUTH_INVALID_LOGIN"
	CodeAuthTokenInvalid   Code = "AUTH_TOKEN_INVALID"
	CodeAuthForbidden      Code = "AUTH_FORBIDDEN"

	// Pricing errors
	CodePricingRuleInvalid Code = "PRICING_RULE_INVALID"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeConflict      Code = "CONFLICT"

	// Transport errors
	CodeBadRequest Code = "BAD_REQUEST"
)

// HTTPStatus maps domain codes to HTTP response status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeClientNameEmpty,
		CodeClientDiscountRange,
		CodeClientPhoneInvalid,
		CodeSupplierNameEmpty,
		CodeProductSKUEmpty,
		CodeProductNameEmpty,
		CodeProductInvalidCategory,
		CodeProductInvalidMetal,
		CodeProductNegativeAmount,
		CodeProductNegativeWeight,
		CodePurchaseSupplierEmpty,
		CodePurchaseNoLines,
		CodePurchaseInvalidLine,
		CodeSaleNoLines,
		CodeSaleInvalidLine,
		CodeSaleDiscountRange,
		CodeSaleNumberInvalid,
		CodeSalePhotoEmpty,
		CodeSalePhotoBadImageType,
		CodePaymentNotPositive,
		CodePaymentInvalidMethod,
		CodePaymentTargetMissing,
		CodeRepairClientEmpty,
		CodeRepairItemEmpty,
		CodeDepositNotPositive,
		CodeDepositClientEmpty,
		CodeShipmentTrackingEmpty,
		CodeStaffUsernameEmpty,
		CodeStaffPasswordWeak,
		CodePricingRuleInvalid,
		CodeBadRequest:
		return http.StatusBadRequest

	// Conflict - state does not allow the operation
	case CodeProductInsufficientStock,
		CodeProductNotSellable,
		CodePurchaseNotDraft,
		CodeSaleCancelled,
		CodeSaleHasPayments,
		CodeSaleShipmentExists,
		CodeRepairInvalidTransition,
		CodeRepairPriceUnset,
		CodeRepairUnpaid,
		CodeDepositNotHeld,
		CodeShipmentTerminal,
		CodeAlreadyExists,
		CodeConflict:
		return http.StatusConflict

	case CodeNotFound, CodeTrackingNotFound:
		return http.StatusNotFound

	case CodeAuthInvalidLogin, CodeAuthTokenInvalid, CodeStaffInactive:
		return http.StatusUnauthorized

	case CodeAuthForbidden:
		return http.StatusForbidden

	case CodeSalePhotoTooLarge:
		return http.StatusRequestEntityTooLarge

	case CodeCourierUnavailable:
		return http.StatusBadGateway

	case CodeCourierMarkupChanged, CodeTrackerNotConfigured:
		return http.StatusNotImplemented

	default:
		return http.StatusInternalServerError
	}
}
