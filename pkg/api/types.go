package api

import (
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/storage"
)

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RefreshRequest is the optional body of POST /api/auth/refresh; the refresh cookie wins
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionUser is the user part of login and me responses
type SessionUser struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Role        auth.Role         `json:"role"`
	Permissions []auth.Permission `json:"permissions,omitempty"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	User    SessionUser   `json:"user"`
	Session *auth.Session `json:"session"`
}

// MemberRequest creates a member
type MemberRequest struct {
	Ad           string `json:"ad" validate:"required,min=2,max=100"`
	Soyad        string `json:"soyad" validate:"required,min=2,max=100"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Telefon      string `json:"telefon,omitempty" validate:"omitempty,min=10,max=15"`
	TCKimlikNo   string `json:"tc_kimlik_no,omitempty" validate:"omitempty,len=11,numeric"`
	Adres        string `json:"adres,omitempty" validate:"omitempty,max=500"`
	UyelikTarihi string `json:"uyelik_tarihi,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Durum        string `json:"durum,omitempty" validate:"omitempty,oneof=aktif pasif"`
}

// Record returns the columns to insert; empty optional fields are left to the database
func (m MemberRequest) Record() storage.Record {
	rec := storage.Record{"ad": m.Ad, "soyad": m.Soyad}
	setIfNotEmpty(rec, "email", m.Email)
	setIfNotEmpty(rec, "telefon", m.Telefon)
	setIfNotEmpty(rec, "tc_kimlik_no", m.TCKimlikNo)
	setIfNotEmpty(rec, "adres", m.Adres)
	setIfNotEmpty(rec, "uyelik_tarihi", m.UyelikTarihi)
	setIfNotEmpty(rec, "durum", m.Durum)
	return rec
}

// MemberUpdateRequest changes the fields that are present
type MemberUpdateRequest struct {
	Ad           *string `json:"ad,omitempty" validate:"omitempty,min=2,max=100"`
	Soyad        *string `json:"soyad,omitempty" validate:"omitempty,min=2,max=100"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Telefon      *string `json:"telefon,omitempty" validate:"omitempty,min=10,max=15"`
	TCKimlikNo   *string `json:"tc_kimlik_no,omitempty" validate:"omitempty,len=11,numeric"`
	Adres        *string `json:"adres,omitempty" validate:"omitempty,max=500"`
	UyelikTarihi *string `json:"uyelik_tarihi,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Durum        *string `json:"durum,omitempty" validate:"omitempty,oneof=aktif pasif"`
}

// Record returns the present fields
func (m MemberUpdateRequest) Record() storage.Record {
	rec := storage.Record{}
	setIfPresent(rec, "ad", m.Ad)
	setIfPresent(rec, "soyad", m.Soyad)
	setIfPresent(rec, "email", m.Email)
	setIfPresent(rec, "telefon", m.Telefon)
	setIfPresent(rec, "tc_kimlik_no", m.TCKimlikNo)
	setIfPresent(rec, "adres", m.Adres)
	setIfPresent(rec, "uyelik_tarihi", m.UyelikTarihi)
	setIfPresent(rec, "durum", m.Durum)
	return rec
}

// DonationRequest records a donation
type DonationRequest struct {
	BagisciAdi  string  `json:"bagisci_adi" validate:"required,min=2,max=200"`
	Email       string  `json:"email,omitempty" validate:"omitempty,email"`
	Telefon     string  `json:"telefon,omitempty" validate:"omitempty,min=10,max=15"`
	Tutar       float64 `json:"tutar" validate:"required,gt=0"`
	Tur         string  `json:"tur" validate:"required,oneof=nakdi ayni"`
	Amac        string  `json:"amac,omitempty" validate:"omitempty,max=200"`
	Aciklama    string  `json:"aciklama,omitempty" validate:"omitempty,max=1000"`
	BagisTarihi string  `json:"bagis_tarihi,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Record returns the columns to insert
func (d DonationRequest) Record() storage.Record {
	rec := storage.Record{"bagisci_adi": d.BagisciAdi, "tutar": d.Tutar, "tur": d.Tur}
	setIfNotEmpty(rec, "email", d.Email)
	setIfNotEmpty(rec, "telefon", d.Telefon)
	setIfNotEmpty(rec, "amac", d.Amac)
	setIfNotEmpty(rec, "aciklama", d.Aciklama)
	setIfNotEmpty(rec, "bagis_tarihi", d.BagisTarihi)
	return rec
}

// SocialAidRequest is a social aid application
type SocialAidRequest struct {
	BeneficiaryID    string   `json:"beneficiary_id" validate:"required"`
	YardimTuru       string   `json:"yardim_turu" validate:"required,oneof=nakdi gida egitim saglik barinma diger"`
	TalepEdilenTutar *float64 `json:"talep_edilen_tutar,omitempty" validate:"omitempty,gt=0"`
	Gerekce          string   `json:"gerekce,omitempty" validate:"omitempty,max=2000"`
	Durum            string   `json:"durum,omitempty" validate:"omitempty,oneof=beklemede onaylandi reddedildi"`
}

// Record returns the columns to insert. A missing durum falls back to the table default.
func (a SocialAidRequest) Record() storage.Record {
	rec := storage.Record{"beneficiary_id": a.BeneficiaryID, "yardim_turu": a.YardimTuru}
	if a.TalepEdilenTutar != nil {
		rec["talep_edilen_tutar"] = *a.TalepEdilenTutar
	}
	setIfNotEmpty(rec, "gerekce", a.Gerekce)
	setIfNotEmpty(rec, "durum", a.Durum)
	return rec
}

func setIfNotEmpty(rec storage.Record, column, value string) {
	if value != "" {
		rec[column] = value
	}
}

func setIfPresent(rec storage.Record, column string, value *string) {
	if value != nil {
		rec[column] = *value
	}
}
