package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Schema selects the eMISTR installation generation to create.
type Schema int

const (
	// CurrentSchema has every optional column.
	CurrentSchema Schema = iota
	// LegacySchema lacks material.vydano_mnozstvi, material.cena_nakup,
	// material.cena_celkem, operation.user_price, operation.user_time,
	// stroje.current_status and readdata.real_time.
	LegacySchema
)

// Seed row ids referenced by tests.
const (
	SeedOrderActiveID   = 1
	SeedOrderActiveCode = "Z-2024-001"
	SeedOrderFutureID   = 2
	SeedOrderClosedID   = 3
	SeedCustomerID      = 1
	SeedWorkerID        = 1
	SeedMaterialLowID   = 1
)

func emistrDDL(schema Schema) []string {
	optional := func(cols string) string {
		if schema == LegacySchema {
			return ""
		}
		return cols
	}
	return []string{
		`CREATE TABLE customer (
			id INTEGER PRIMARY KEY,
			name VARCHAR(255),
			ico VARCHAR(20),
			dic VARCHAR(20)
		)`,
		`CREATE TABLE order_stav (
			id INTEGER PRIMARY KEY,
			name VARCHAR(50)
		)`,
		`CREATE TABLE c_order (
			id INTEGER PRIMARY KEY,
			bar_id VARCHAR(50),
			code VARCHAR(50),
			name VARCHAR(255),
			active VARCHAR(10),
			start DATE,
			finish DATE,
			customer_id INTEGER,
			customer_name VARCHAR(255),
			kusu INTEGER,
			prevedeno INTEGER,
			user_time DECIMAL(12,2),
			real_time DECIMAL(12,2),
			user_price DECIMAL(12,2),
			real_price DECIMAL(12,2),
			priorita INTEGER,
			datumExpedice DATE,
			note TEXT,
			note2 TEXT,
			cislo_objednavky VARCHAR(50)
		)`,
		`CREATE TABLE operation_group (
			id INTEGER PRIMARY KEY,
			name VARCHAR(100)
		)`,
		`CREATE TABLE operation (
			id INTEGER PRIMARY KEY,
			name VARCHAR(255),
			bar_id VARCHAR(50),
			` + optional(`user_price DECIMAL(12,2),
			user_time DECIMAL(12,2),`) + `
			group_name VARCHAR(100)
		)`,
		`CREATE TABLE order_work (
			id INTEGER PRIMARY KEY,
			order_id INTEGER,
			operation_id INTEGER,
			user_time DECIMAL(12,2),
			real_time DECIMAL(12,2),
			odpracovano DECIMAL(12,2),
			user_price DECIMAL(12,2),
			real_price DECIMAL(12,2),
			vyrobenocelkem INTEGER,
			units INTEGER,
			poradi INTEGER,
			start_req DATE,
			finish_req DATE,
			comment TEXT
		)`,
		`CREATE TABLE sklad_material (
			id INTEGER PRIMARY KEY,
			name VARCHAR(255),
			bar_id VARCHAR(50),
			count DECIMAL(12,3),
			limit_count DECIMAL(12,3),
			unit VARCHAR(10),
			price DECIMAL(12,2),
			sklad_id INTEGER
		)`,
		`CREATE TABLE material (
			id INTEGER PRIMARY KEY,
			order_id INTEGER,
			material_id INTEGER,
			mnozstvi DECIMAL(12,3),
			` + optional(`vydano_mnozstvi DECIMAL(12,3),
			cena_nakup DECIMAL(12,2),
			cena_celkem DECIMAL(12,2),`) + `
			jednotka VARCHAR(10)
		)`,
		`CREATE TABLE sklad_material_pohyb (
			id INTEGER PRIMARY KEY,
			material_id INTEGER,
			mnozstvi DECIMAL(12,3),
			datum DATETIME,
			typ_pohybu VARCHAR(1),
			order_id INTEGER,
			sklad_id INTEGER,
			cena DECIMAL(12,2)
		)`,
		`CREATE TABLE worker_group (
			id INTEGER PRIMARY KEY,
			name VARCHAR(100)
		)`,
		`CREATE TABLE worker (
			id INTEGER PRIMARY KEY,
			name VARCHAR(255),
			bar_id VARCHAR(50),
			firstname VARCHAR(100),
			lastname VARCHAR(100),
			active VARCHAR(10),
			group_name VARCHAR(100),
			group_id INTEGER,
			profese VARCHAR(100),
			misto_prace VARCHAR(100),
			email VARCHAR(255),
			telefon VARCHAR(50),
			start DATE,
			finish DATE,
			comment TEXT,
			birthdate DATE,
			card VARCHAR(50),
			card_dmr VARCHAR(50)
		)`,
		`CREATE TABLE readdata (
			id INTEGER PRIMARY KEY,
			worker_id INTEGER,
			order_id INTEGER,
			operation_id INTEGER,
			start DATETIME,
			` + optional(`real_time DECIMAL(12,2),`) + `
			finish DATETIME
		)`,
		`CREATE TABLE stroj_group (
			id INTEGER PRIMARY KEY,
			name VARCHAR(100)
		)`,
		`CREATE TABLE stroje (
			id INTEGER PRIMARY KEY,
			name VARCHAR(255),
			` + optional(`current_status VARCHAR(20),`) + `
			group_id INTEGER
		)`,
	}
}

func emistrSeed(schema Schema, now time.Time) []string {
	legacy := schema == LegacySchema
	pick := func(current, old string) string {
		if legacy {
			return old
		}
		return current
	}
	day := func(daysAgo int, hour int) string {
		t := now.AddDate(0, 0, -daysAgo)
		return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC).Format("2006-01-02 15:04:05")
	}

	return []string{
		`INSERT INTO customer (id, name, ico, dic) VALUES
			(1, 'Strojírny Brno a.s.', '12345678', 'CZ12345678'),
			(2, 'Kovo Plzeň s.r.o.', '87654321', 'CZ87654321')`,
		`INSERT INTO order_stav (id, name) VALUES (1, 'ANO'), (2, 'NE')`,
		`INSERT INTO c_order (id, bar_id, code, name, active, start, finish, customer_id, customer_name, kusu, prevedeno,
			user_time, real_time, user_price, real_price, priorita, datumExpedice, note, note2, cislo_objednavky) VALUES
			(1, 'B001', 'Z-2024-001', 'Rám svařovaný', 'ANO', '2024-01-10', '2024-02-28', 1, 'Strojírny Brno a.s.', 10, 4,
				40.00, 32.00, 50000.00, 42000.00, 2, '2024-03-01', 'Kontakt: jan@firma.cz, tel. 777123456', 'IČO 12345678', 'OBJ-100'),
			(2, 'B002', 'Z-2024-002', 'Hřídel', 'ANO', '2024-02-01', '2099-12-31', 1, 'Strojírny Brno a.s.', 50, 0,
				25.00, 0.00, 18000.00, 0.00, 5, NULL, NULL, NULL, 'OBJ-200'),
			(3, 'B003', 'Z-2024-003', 'Příruba', 'NE', '2024-01-05', '2024-01-20', 2, 'Kovo Plzeň s.r.o.', 20, 20,
				12.00, 11.00, 9000.00, 8800.00, 1, '2024-01-22', 'hotovo', NULL, 'OBJ-300')`,
		`INSERT INTO operation_group (id, name) VALUES (1, 'SVAR'), (2, 'POVRCH'), (3, 'OBRAB')`,
		pick(
			`INSERT INTO operation (id, name, bar_id, user_price, user_time, group_name) VALUES
				(1, 'Svařování', 'OP-SV', 450.00, 1.50, 'SVAR'),
				(2, 'Lakování', 'OP-LAK', 300.00, 0.50, 'POVRCH'),
				(3, 'Soustružení', 'OP-SOU', 500.00, 2.00, 'OBRAB')`,
			`INSERT INTO operation (id, name, bar_id, group_name) VALUES
				(1, 'Svařování', 'OP-SV', 'SVAR'),
				(2, 'Lakování', 'OP-LAK', 'POVRCH'),
				(3, 'Soustružení', 'OP-SOU', 'OBRAB')`,
		),
		`INSERT INTO order_work (id, order_id, operation_id, user_time, real_time, odpracovano, user_price, real_price,
			vyrobenocelkem, units, poradi, start_req, finish_req, comment) VALUES
			(2, 1, 2, 20.00, 14.00, 14.00, 6000.00, 4200.00, 4, 10, 2, '2024-02-01', '2024-02-20', NULL),
			(1, 1, 1, 20.00, 18.00, 18.00, 9000.00, 8100.00, 10, 10, 1, '2024-01-10', '2024-01-31', 'volat 602111222')`,
		`INSERT INTO sklad_material (id, name, bar_id, count, limit_count, unit, price, sklad_id) VALUES
			(1, 'Plech 2mm', 'M-PL2', 5, 20, 'ks', 125.50, 1),
			(2, 'Trubka 40x40', 'M-TR40', 150, 50, 'm', 89.90, 1),
			(3, 'Barva RAL 5010', 'M-RAL', 8, 10, 'l', 420.00, 2)`,
		pick(
			`INSERT INTO material (id, order_id, material_id, mnozstvi, vydano_mnozstvi, cena_nakup, cena_celkem, jednotka) VALUES
				(1, 1, 1, 4, 4, 125.50, 502.00, 'ks'),
				(2, 1, 2, 12, 10, 89.90, 1078.80, 'm')`,
			`INSERT INTO material (id, order_id, material_id, mnozstvi, jednotka) VALUES
				(1, 1, 1, 4, 'ks'),
				(2, 1, 2, 12, 'm')`,
		),
		`INSERT INTO sklad_material_pohyb (id, material_id, mnozstvi, datum, typ_pohybu, order_id, sklad_id, cena) VALUES
			(1, 1, 50, '2024-02-01 08:00:00', 'P', NULL, 1, 125.50),
			(2, 1, 4, '2024-02-10 09:30:00', 'V', 1, 1, 125.50),
			(3, 2, 12, '2024-02-12 10:00:00', 'V', 1, 1, 89.90)`,
		`INSERT INTO worker_group (id, name) VALUES (1, 'Svářeči'), (2, 'Lakovna')`,
		`INSERT INTO worker (id, name, bar_id, firstname, lastname, active, group_name, group_id, profese, misto_prace,
			email, telefon, start, finish, comment, birthdate, card, card_dmr) VALUES
			(1, 'Novák Jan', 'W001', 'Jan', 'Novák', 'ANO', 'SVAR', 1, 'svářeč', 'Hala A',
				'jan.novak@firma.cz', '+420 777 123 456', '2015-03-01', NULL, 'soukromý mobil 777123456', '1980-05-01', '0012345', '99'),
			(2, 'Dvořák Petr', 'W002', 'Petr', 'Dvořák', 'ANO', 'POVRCH', 2, 'lakýrník', 'Hala B',
				'petr.dvorak@firma.cz', '602 111 222', '2018-09-01', NULL, NULL, '1990-11-12', '0023456', NULL),
			(3, 'Svoboda Karel', 'W003', 'Karel', 'Svoboda', 'NE', 'SVAR', 1, 'svářeč', 'Hala A',
				NULL, NULL, '2010-01-01', '2023-12-31', NULL, NULL, NULL, NULL)`,
		pick(
			fmt.Sprintf(`INSERT INTO readdata (id, worker_id, order_id, operation_id, start, finish, real_time) VALUES
				(1, 1, 1, 1, '2024-03-01 06:00:00', '2024-03-01 14:00:00', 8.00),
				(2, 2, 1, 2, '2024-03-01 06:00:00', '2024-03-01 10:00:00', 4.00),
				(3, 1, 2, 1, '2024-03-02 06:00:00', '2024-03-02 10:30:00', 4.50),
				(10, 1, 1, 1, '%s', '%s', 8.00),
				(11, 1, 2, 1, '%s', '%s', 4.00)`,
				day(1, 6), day(1, 14), day(3, 6), day(3, 10)),
			fmt.Sprintf(`INSERT INTO readdata (id, worker_id, order_id, operation_id, start, finish) VALUES
				(1, 1, 1, 1, '2024-03-01 06:00:00', '2024-03-01 14:00:00'),
				(2, 2, 1, 2, '2024-03-01 06:00:00', '2024-03-01 10:00:00'),
				(3, 1, 2, 1, '2024-03-02 06:00:00', '2024-03-02 10:30:00'),
				(10, 1, 1, 1, '%s', '%s'),
				(11, 1, 2, 1, '%s', '%s')`,
				day(1, 6), day(1, 14), day(3, 6), day(3, 10)),
		),
		`INSERT INTO stroj_group (id, name) VALUES (1, 'CNC'), (2, 'Lisy')`,
		pick(
			`INSERT INTO stroje (id, name, current_status, group_id) VALUES
				(1, 'DMG Mori 1', 'busy', 1),
				(2, 'Haas VF-2', 'idle', 1),
				(3, 'Lis 200t', 'idle', 2)`,
			`INSERT INTO stroje (id, name, group_id) VALUES
				(1, 'DMG Mori 1', 1),
				(2, 'Haas VF-2', 1),
				(3, 'Lis 200t', 2)`,
		),
	}
}

// LoadEmistr creates the eMISTR tables on db and fills them with a small
// production data set. Recent time records are placed relative to now.
// Statements run one at a time because the MySQL driver refuses
// multi-statement strings.
func LoadEmistr(ctx context.Context, db *sql.DB, schema Schema, now time.Time) error {
	stmts := append(emistrDDL(schema), emistrSeed(schema, now.UTC())...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("load emistr schema: %w (statement: %s)", err, firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
